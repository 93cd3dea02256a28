// +build windows

package binutil

import "github.com/brickhost/brickd/engine/bhlog"

type nopRelease int

func (_ nopRelease) Release() {

}

func Daemonize() nopRelease {
	// Windows can not daemonize
	bhlog.Warnf("can not run in daemon mode in windows, -d ignored")
	return nopRelease(0)
}
