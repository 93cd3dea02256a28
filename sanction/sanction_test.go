package sanction

import (
	"testing"
	"time"

	"github.com/bmizerany/assert"

	kvdbtypes "github.com/brickhost/brickd/engine/kvdb/types"
	"github.com/brickhost/brickd/engine/netutil"
)

func TestBanAndUnban(t *testing.T) {
	s := NewSet()
	assert.Equal(t, false, s.IsBanned("1.2.3.4"))

	s.Ban("1.2.3.4")
	assert.Equal(t, true, s.IsBanned("1.2.3.4"))
	assert.Equal(t, false, s.IsBanned("1.2.3.5"))

	s.Unban("1.2.3.4")
	assert.Equal(t, false, s.IsBanned("1.2.3.4"))
}

func TestAllowTakesPrecedence(t *testing.T) {
	s := NewSet()
	s.Ban("1.2.3.4")
	s.Allow("1.2.3.4")
	assert.Equal(t, false, s.IsBanned("1.2.3.4"))

	// removing the allow entry re-exposes the ban
	s.Disallow("1.2.3.4")
	assert.Equal(t, true, s.IsBanned("1.2.3.4"))
}

func TestTempBanExpires(t *testing.T) {
	s := NewSet()
	now := time.Now()
	s.TempBan("1.2.3.4", time.Minute)
	assert.Equal(t, true, s.IsBanned("1.2.3.4"))

	// still banned before expiry
	s.Sweep(now.Add(time.Second * 30))
	assert.Equal(t, true, s.IsBanned("1.2.3.4"))

	s.Sweep(now.Add(time.Minute * 2))
	assert.Equal(t, false, s.IsBanned("1.2.3.4"))
}

func TestTempBanDoesNotLiftPermanentBan(t *testing.T) {
	s := NewSet()
	s.Ban("1.2.3.4")
	s.TempBan("1.2.3.4", time.Minute)
	s.Sweep(time.Now().Add(time.Hour))

	// the temp entry expired but the address was banned outright first
	assert.Equal(t, true, s.IsBanned("1.2.3.4"))
}

func TestSweepOrderIndependent(t *testing.T) {
	s := NewSet()
	now := time.Now()
	s.TempBan("a", time.Minute)
	s.TempBan("b", time.Second)
	s.TempBan("c", time.Hour)

	s.Sweep(now.Add(time.Second * 30))
	assert.Equal(t, false, s.IsBanned("b"))
	assert.Equal(t, true, s.IsBanned("a"))
	assert.Equal(t, true, s.IsBanned("c"))
}

func TestPersistedRecordsRestore(t *testing.T) {
	s := NewSet()
	s.applyPersisted([]kvdbtypes.KVItem{
		{Key: banKeyPrefix + "1.2.3.4", Val: "1"},
		{Key: banKeyPrefix + "5.6.7.8", Val: ""}, // tombstone of an unban
		{Key: allowKeyPrefix + "1.2.3.4", Val: "1"},
		{Key: banKeyPrefix + "9.9.9.9", Val: "1"},
		{Key: "sanction/other", Val: "1"}, // unrecognized record kind
	})

	assert.Equal(t, false, s.IsBanned("5.6.7.8"))
	assert.Equal(t, true, s.IsBanned("9.9.9.9"))
	// the allow record outranks the ban record for the same address
	assert.Equal(t, false, s.IsBanned("1.2.3.4"))
}

func TestLegacyBlobMigration(t *testing.T) {
	blob, err := netutil.MSG_PACKER.PackMsg(&legacyRecord{
		Banned:  []string{"1.2.3.4", "9.9.9.9"},
		Allowed: []string{"1.2.3.4"},
	}, nil)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	s := NewSet()
	if err := s.migrateLegacyBlob(blob); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	assert.Equal(t, true, s.IsBanned("9.9.9.9"))
	assert.Equal(t, false, s.IsBanned("1.2.3.4"))

	if err := s.migrateLegacyBlob([]byte("not msgpack")); err == nil {
		t.Fatal("garbage blob accepted")
	}
}
