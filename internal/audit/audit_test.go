package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pixil98/go-testutil"

	"github.com/pixil98/go-realm/internal/geom"
)

type captureRecorder struct {
	got []Rejection
}

func (c *captureRecorder) Record(_ context.Context, r Rejection) {
	c.got = append(c.got, r)
}

func TestMulti_Record(t *testing.T) {
	a, b := &captureRecorder{}, &captureRecorder{}
	m := Multi{a, LogRecorder{}, b}

	m.Record(context.Background(), Rejection{PlayerID: "p1", Reason: "speed"})

	testutil.AssertEqual(t, "first", len(a.got), 1)
	testutil.AssertEqual(t, "second", len(b.got), 1)
	testutil.AssertEqual(t, "player", b.got[0].PlayerID, "p1")
}

func readJSONL(t *testing.T, path string) []Rejection {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	var out []Rejection
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var r Rejection
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("unmarshal %q: %v", sc.Text(), err)
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	w := NewJSONLZstdWriter(dir, "rejections", WithJSONLClock(func() time.Time { return now }))
	ctx := context.Background()

	w.Record(ctx, Rejection{Time: now, PlayerID: "a", Reason: "speed", Proposed: geom.Vec3{X: 1}})
	w.Record(ctx, Rejection{Time: now, PlayerID: "b", Reason: "bounds"})
	now = now.Add(2 * time.Minute)
	w.Record(ctx, Rejection{Time: now, PlayerID: "c", Reason: "height"})
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	first := readJSONL(t, filepath.Join(dir, "rejections-2024-05-01-10.jsonl.zst"))
	testutil.AssertEqual(t, "first hour entries", len(first), 2)
	testutil.AssertEqual(t, "first player", first[0].PlayerID, "a")
	testutil.AssertEqual(t, "proposed", first[0].Proposed, geom.Vec3{X: 1})

	second := readJSONL(t, w.PathForHour("2024-05-01-11"))
	testutil.AssertEqual(t, "second hour entries", len(second), 1)
	testutil.AssertEqual(t, "second reason", second[0].Reason, "height")
}

func TestSQLiteIndex_CountByReason(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	ctx := context.Background()
	for _, reason := range []string{"speed", "speed", "collider"} {
		idx.Record(ctx, Rejection{Time: time.Now(), PlayerID: "p1", Reason: reason})
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	idx.Record(ctx, Rejection{PlayerID: "late", Reason: "speed"})

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	counts, err := reopened.CountByReason(ctx)
	if err != nil {
		t.Fatalf("CountByReason: %v", err)
	}
	testutil.AssertEqual(t, "speed", counts["speed"], 2)
	testutil.AssertEqual(t, "collider", counts["collider"], 1)
	testutil.AssertEqual(t, "bounds", counts["bounds"], 0)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite("")
	testutil.AssertErrorContains(t, err, "empty db path")
}
