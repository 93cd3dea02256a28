package sanction

import (
	"strings"
	"sync"
	"time"

	"github.com/petar/GoLLRB/llrb"
	"github.com/pkg/errors"
	timer "github.com/xiaonanln/goTimer"

	"github.com/brickhost/brickd/engine/bhlog"
	"github.com/brickhost/brickd/engine/common"
	"github.com/brickhost/brickd/engine/consts"
	"github.com/brickhost/brickd/engine/kvdb"
	kvdbtypes "github.com/brickhost/brickd/engine/kvdb/types"
	"github.com/brickhost/brickd/engine/netutil"
)

// Ban state persists as one kvdb record per address so that individual
// bans write independently. Addresses are ASCII, so "\x7f" bounds the scan.
const (
	banKeyPrefix   = "sanction/ban/"
	allowKeyPrefix = "sanction/allow/"

	sanctionKeyBegin = "sanction/"
	sanctionKeyEnd   = "sanction/\x7f"

	// earlier releases persisted the whole state as one msgpack blob;
	// sorts below sanctionKeyBegin, so the scan never sees it
	legacyBlobKey = "sanction"
)

// legacyRecord is the single-blob format Load migrates away from
type legacyRecord struct {
	Banned  []string `msgpack:"b"`
	Allowed []string `msgpack:"a"`
}

type tempBan struct {
	expiry time.Time
	addr   string
}

func (t tempBan) Less(than llrb.Item) bool {
	o := than.(tempBan)
	if !t.expiry.Equal(o.expiry) {
		return t.expiry.Before(o.expiry)
	}
	return t.addr < o.addr
}

// Set is the address-based allow/deny enforcement state. An address on the
// allow set is never treated as banned, whatever the deny set says.
// Temporary bans expire on the sweep timer; permanent bans persist through
// kvdb when a backend is configured.
type Set struct {
	mu      sync.RWMutex
	banned  common.StringSet // effective deny set, permanent + temporary
	perm    common.StringSet
	allowed common.StringSet
	temp    *llrb.LLRB

	sweepTimer *timer.Timer
}

// NewSet creates an empty sanction set
func NewSet() *Set {
	return &Set{
		banned:  common.StringSet{},
		perm:    common.StringSet{},
		allowed: common.StringSet{},
		temp:    llrb.New(),
	}
}

// StartSweeping schedules the periodic removal of expired temporary bans.
// Runs on the game goroutine through the shared timer loop.
func (s *Set) StartSweeping() {
	if s.sweepTimer != nil {
		return
	}
	s.sweepTimer = timer.AddTimer(consts.TEMPBAN_SWEEP_INTERVAL, func() {
		s.Sweep(time.Now())
	})
}

// StopSweeping cancels the sweep timer
func (s *Set) StopSweeping() {
	if s.sweepTimer != nil {
		s.sweepTimer.Cancel()
		s.sweepTimer = nil
	}
}

// Ban adds an address to the deny set permanently
func (s *Set) Ban(addr string) {
	s.mu.Lock()
	s.banned.Add(addr)
	s.perm.Add(addr)
	s.mu.Unlock()
	persist(banKeyPrefix+addr, true)
}

// TempBan adds an address to the deny set until the expiry elapses
func (s *Set) TempBan(addr string, d time.Duration) {
	s.mu.Lock()
	s.banned.Add(addr)
	s.temp.InsertNoReplace(tempBan{expiry: time.Now().Add(d), addr: addr})
	s.mu.Unlock()
}

// Unban removes an address from the deny set
func (s *Set) Unban(addr string) {
	s.mu.Lock()
	s.banned.Remove(addr)
	s.perm.Remove(addr)
	s.mu.Unlock()
	persist(banKeyPrefix+addr, false)
}

// Allow adds an address to the allow set; allow takes precedence over deny
func (s *Set) Allow(addr string) {
	s.mu.Lock()
	s.allowed.Add(addr)
	s.mu.Unlock()
	persist(allowKeyPrefix+addr, true)
}

// Disallow removes an address from the allow set
func (s *Set) Disallow(addr string) {
	s.mu.Lock()
	s.allowed.Remove(addr)
	s.mu.Unlock()
	persist(allowKeyPrefix+addr, false)
}

// IsBanned reports whether connections from addr must be refused
func (s *Set) IsBanned(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.allowed.Contains(addr) {
		return false
	}
	return s.banned.Contains(addr)
}

// Sweep removes temporary bans that expired at or before now. Addresses that
// were also banned permanently stay banned.
func (s *Set) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pivot := tempBan{expiry: now.Add(time.Nanosecond)}
	var expired []tempBan
	s.temp.AscendLessThan(pivot, func(item llrb.Item) bool {
		expired = append(expired, item.(tempBan))
		return true
	})
	for _, tb := range expired {
		s.temp.Delete(tb)
		// an address banned permanently as well stays banned
		if !s.perm.Contains(tb.addr) {
			s.banned.Remove(tb.addr)
		}
		bhlog.Infof("temporary ban of %s expired", tb.addr)
	}
}

// Load restores persisted ban state from kvdb, if a backend is configured.
// A legacy single-blob record is converted to per-address records first.
// The callback runs on the game goroutine after the load settles.
func (s *Set) Load(callback func(err error)) {
	if !kvdb.Enabled() {
		if callback != nil {
			callback(nil)
		}
		return
	}
	kvdb.Get(legacyBlobKey, func(val string, err error) {
		if err != nil {
			if callback != nil {
				callback(errors.Wrap(err, "load sanction state"))
			}
			return
		}
		if val != "" {
			if err := s.migrateLegacyBlob([]byte(val)); err != nil {
				bhlog.Errorf("sanction blob migration failed: %v", err)
			}
		}
		kvdb.GetRange(sanctionKeyBegin, sanctionKeyEnd, func(items []kvdbtypes.KVItem, err error) {
			if err != nil {
				if callback != nil {
					callback(errors.Wrap(err, "load sanction state"))
				}
				return
			}
			s.applyPersisted(items)
			if callback != nil {
				callback(nil)
			}
		})
	})
}

// migrateLegacyBlob ingests the old single-blob state, rewrites it as
// per-address records and tombstones the blob
func (s *Set) migrateLegacyBlob(data []byte) error {
	var rec legacyRecord
	if err := netutil.MSG_PACKER.UnpackMsg(data, &rec); err != nil {
		return errors.Wrap(err, "unpack legacy sanction blob")
	}
	s.mu.Lock()
	for _, addr := range rec.Banned {
		s.banned.Add(addr)
		s.perm.Add(addr)
	}
	for _, addr := range rec.Allowed {
		s.allowed.Add(addr)
	}
	s.mu.Unlock()

	for _, addr := range rec.Banned {
		persist(banKeyPrefix+addr, true)
	}
	for _, addr := range rec.Allowed {
		persist(allowKeyPrefix+addr, true)
	}
	persist(legacyBlobKey, false)
	bhlog.Infof("sanction state migrated: %d bans, %d allows", len(rec.Banned), len(rec.Allowed))
	return nil
}

// applyPersisted restores per-address records; an empty value is the
// tombstone an unban leaves behind
func (s *Set) applyPersisted(items []kvdbtypes.KVItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if item.Val == "" {
			continue
		}
		switch {
		case strings.HasPrefix(item.Key, banKeyPrefix):
			addr := item.Key[len(banKeyPrefix):]
			s.banned.Add(addr)
			s.perm.Add(addr)
		case strings.HasPrefix(item.Key, allowKeyPrefix):
			s.allowed.Add(item.Key[len(allowKeyPrefix):])
		default:
			bhlog.Warnf("unknown sanction record %q", item.Key)
		}
	}
}

// persist writes one per-address record asynchronously; kvdb has no delete,
// so removal writes the empty tombstone. Temporary bans are not persisted,
// they die with the process.
func persist(key string, present bool) {
	if !kvdb.Enabled() {
		return
	}
	val := ""
	if present {
		val = "1"
	}
	kvdb.Put(key, val, func(err error) {
		if err != nil {
			bhlog.Errorf("persist sanction record %s failed: %v", key, err)
		}
	})
}
