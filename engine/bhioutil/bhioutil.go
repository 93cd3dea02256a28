package bhioutil

import (
	"io"
	"net"
)

// IsTimeoutError checks if the error is a timeout error
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	netErr, ok := err.(net.Error)
	if !ok {
		return false
	}
	return netErr.Timeout()
}

// ReadAll reads from the reader until the buffer is full
func ReadAll(conn io.Reader, buf []byte) error {
	for len(buf) > 0 {
		n, err := conn.Read(buf)
		if n > 0 {
			buf = buf[n:]
		}
		if err != nil {
			if IsTimeoutError(err) {
				continue
			}

			return err
		}
	}
	return nil
}

// WriteAll writes the whole data to the writer
func WriteAll(conn io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := conn.Write(data)
		if n > 0 {
			data = data[n:]
		}
		if err != nil {
			if IsTimeoutError(err) {
				continue
			}

			return err
		}
	}
	return nil
}
