package store

import (
	"bytes"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	cc2420 "github.com/michcald/cc2420sim"
)

// runningSnapshot returns the snapshot of a device listening on channel 11.
func runningSnapshot(t *testing.T) (*cc2420.Device, cc2420.Snapshot) {
	t.Helper()
	d, err := cc2420.New(cc2420.Config{Logger: cc2420.NopLogger()})
	if err != nil {
		t.Fatal(err)
	}
	bus := cc2420.NewBus("test", d)
	d.Write(cc2420.PinVREGEN, cc2420.PinVREGEN)
	d.Update(2 * time.Millisecond)
	w := []byte{cc2420.StrobeSRXON}
	if err := bus.Tx(w, make([]byte, 1)); err != nil {
		t.Fatal(err)
	}
	d.Update(3 * time.Millisecond)
	return d, d.Snapshot()
}

func sameSnapshot(t *testing.T, got, want cc2420.Snapshot) {
	t.Helper()
	if got.State != want.State || got.Now != want.Now {
		t.Errorf("state %s@%v, want %s@%v", got.State, got.Now, want.State, want.Now)
	}
	if !slices.Equal(got.Registers, want.Registers) {
		t.Errorf("registers differ")
	}
	if !bytes.Equal(got.RAM, want.RAM) {
		t.Errorf("RAM differs")
	}
	if got.FSMTimer != want.FSMTimer || got.RSSIValid != want.RSSIValid {
		t.Errorf("timers or flags differ: %+v vs %+v", got.FSMTimer, want.FSMTimer)
	}
}

func TestFileRoundTrip(t *testing.T) {
	_, want := runningSnapshot(t)
	path := Path(filepath.Join(t.TempDir(), "nodes"), "a")

	if err := SaveFile(path, want); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	sameSnapshot(t, got, want)

	d, err := cc2420.New(cc2420.Config{Logger: cc2420.NopLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Restore(got); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if d.State() != cc2420.StateRXSFDSearch {
		t.Errorf("restored state %s", d.State())
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "none.json"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// fakeConn is an in-memory redis.Conn understanding SET, GET, DEL and KEYS.
type fakeConn struct {
	data   map[string][]byte
	failed error
}

func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Err() error   { return c.failed }
func (c *fakeConn) Send(cmd string, args ...interface{}) error {
	return errors.New("pipelining not supported")
}
func (c *fakeConn) Flush() error                  { return nil }
func (c *fakeConn) Receive() (interface{}, error) { return nil, errors.New("no reply") }

func (c *fakeConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	if c.failed != nil {
		return nil, c.failed
	}
	key := args[0].(string)
	switch cmd {
	case "SET":
		c.data[key] = append([]byte(nil), args[1].([]byte)...)
		return "OK", nil
	case "GET":
		v, ok := c.data[key]
		if !ok {
			return nil, nil
		}
		return v, nil
	case "DEL":
		_, ok := c.data[key]
		delete(c.data, key)
		if ok {
			return int64(1), nil
		}
		return int64(0), nil
	case "KEYS":
		var keys []interface{}
		prefix := strings.TrimSuffix(key, "*")
		for k := range c.data {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, []byte(k))
			}
		}
		return keys, nil
	}
	return nil, errors.New("unknown command " + cmd)
}

func TestRedisRoundTrip(t *testing.T) {
	conn := &fakeConn{data: map[string][]byte{}}
	r := &Redis{Conn: conn}
	_, want := runningSnapshot(t)

	if err := r.Save("node-a", want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, ok := conn.data[KeyPrefix+"node-a"]; !ok {
		t.Fatalf("stored keys %v", conn.data)
	}
	got, err := r.Load("node-a")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sameSnapshot(t, got, want)

	keys, err := r.Keys()
	if err != nil || len(keys) != 1 || keys[0] != "node-a" {
		t.Errorf("Keys = %v, %v", keys, err)
	}

	if err := r.Delete("node-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Load("node-a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRedisErrors(t *testing.T) {
	broken := errors.New("connection reset")
	r := &Redis{Conn: &fakeConn{data: map[string][]byte{}, failed: broken}}

	if err := r.Save("x", cc2420.Snapshot{}); !errors.Is(err, broken) || !errors.Is(err, ErrPkg) {
		t.Errorf("Save err = %v", err)
	}
	if _, err := r.Load("x"); !errors.Is(err, broken) {
		t.Errorf("Load err = %v", err)
	}
	if _, err := r.Keys(); !errors.Is(err, broken) {
		t.Errorf("Keys err = %v", err)
	}
}
