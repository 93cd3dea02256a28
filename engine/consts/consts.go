package consts

import "time"

// Tunable Options
const (
	// For Underlying Networking
	// BUFFERED_READ_BUFFSIZE is the read buffer size for buffered connections
	BUFFERED_READ_BUFFSIZE = 16384
	// BUFFERED_WRITE_BUFFSIZE is the write buffer size for buffered connections
	BUFFERED_WRITE_BUFFSIZE = 16384
	// CLIENT_PROXY_WRITE_BUFFER_SIZE is the kernel write buffer size for client sockets
	CLIENT_PROXY_WRITE_BUFFER_SIZE = 1024 * 1024
	// CLIENT_PROXY_READ_BUFFER_SIZE is the kernel read buffer size for client sockets
	CLIENT_PROXY_READ_BUFFER_SIZE = 1024 * 1024
	// CLIENT_PROXY_SET_TCP_NO_DELAY = true sets client sockets to TcpNoDelay
	CLIENT_PROXY_SET_TCP_NO_DELAY = true

	// KCP Tunables
	KCP_NO_DELAY                       = 1
	KCP_INTERNAL_UPDATE_TIMER_INTERVAL = 10
	KCP_ENABLE_FAST_RESEND             = 2
	KCP_DISABLE_CONGESTION_CONTROL     = 1

	// For Packets Send & Recv
	// MAX_FRAME_PAYLOAD_LENGTH is the maximum payload length of a single frame;
	// a length prefix claiming more is a fatal framing error
	MAX_FRAME_PAYLOAD_LENGTH = 1 * 1024 * 1024
	// MAX_FRAME_PREFIX_LENGTH is the maximum byte length of the varint length prefix
	MAX_FRAME_PREFIX_LENGTH = 10
	// PACKET_PAYLOAD_LEN_COMPRESS_THRESHOLD is the minimal payload length that is worth compressing
	PACKET_PAYLOAD_LEN_COMPRESS_THRESHOLD = 512
	// CLIENT_PROXY_SEND_QUEUE_MAX_LEN is the max pending packets per client before
	// deliveries to that client start failing
	CLIENT_PROXY_SEND_QUEUE_MAX_LEN = 1000

	// ASYNC_JOB_QUEUE_MAXLEN is the max pending jobs per async worker group
	ASYNC_JOB_QUEUE_MAXLEN = 1000

	// For the Game Service
	// GAME_SERVICE_PACKET_QUEUE_SIZE is the max inbound packet queue length
	GAME_SERVICE_PACKET_QUEUE_SIZE = 10000
	// GAME_SERVICE_TICK_INTERVAL is the tick interval of the main loop => affects timer resolution
	GAME_SERVICE_TICK_INTERVAL = time.Millisecond * 10
	// MAX_UNKNOWN_PACKETS_PER_CLIENT is the number of undecodable frames tolerated
	// from one client before it is dropped as abusive
	MAX_UNKNOWN_PACKETS_PER_CLIENT = 16

	// For Touch Detection
	// DEFAULT_TOUCH_TICK_INTERVAL is the default polling period of touch monitors;
	// bounds worst-case enter/leave detection latency
	DEFAULT_TOUCH_TICK_INTERVAL = time.Millisecond * 100
	// DEFAULT_CLICK_DISTANCE is the default maximum click distance for clickable bricks
	DEFAULT_CLICK_DISTANCE = 32.0

	// CHAT_RATE_MAX_MESSAGES per CHAT_RATE_WINDOW is the chat rate gate
	CHAT_RATE_MAX_MESSAGES = 5
	CHAT_RATE_WINDOW       = time.Second * 5

	// DEFAULT_MAX_HEALTH is the spawn health of players and bots
	DEFAULT_MAX_HEALTH = 100
	// RESPAWN_DELAY is how long a killed player stays dead before respawning
	RESPAWN_DELAY = time.Second * 5

	// For Keepalive
	// DEFAULT_KEEPALIVE_TIMEOUT kicks clients silent for this long
	DEFAULT_KEEPALIVE_TIMEOUT = time.Minute * 2
	// KEEPALIVE_CHECK_INTERVAL is how often silent clients are looked for
	KEEPALIVE_CHECK_INTERVAL = time.Second * 5

	// For the Sanction Subsystem
	// TEMPBAN_SWEEP_INTERVAL is how often expired temporary bans are removed
	TEMPBAN_SWEEP_INTERVAL = time.Second

	// OPMON_DUMP_INTERVAL is the interval of operation monitor dumps, 0 to disable
	OPMON_DUMP_INTERVAL = time.Minute * 5
)

// Debug Options
const (
	// DEBUG_PACKETS prints each packet sent and received
	DEBUG_PACKETS = false
	// DEBUG_CLIENTS prints client connect / disconnect
	DEBUG_CLIENTS = false
	// DEBUG_MODE terminates the server on errors that are tolerated in production
	DEBUG_MODE = false
)
