package recordlog

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/dgnsrekt/odax_crawler/internal/chain"
)

func strikeRecord(t *testing.T, text string) chain.StrikeRecord {
	t.Helper()
	s, err := chain.ParseStrike(text)
	if err != nil {
		t.Fatalf("ParseStrike() error = %v", err)
	}
	return chain.StrikeRecord{Strike: s, Call: chain.Quote{Price: "12.5"}, CallLine: text + " a ", PutLine: text + " b "}
}

func TestJournalWritesOneFilePerCycle(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	j := New(dir, 16, 10)
	j.now = func() time.Time { return now }

	for _, c := range []string{"cycle-a", "cycle-a", "cycle-b"} {
		if err := j.Write(Record{CycleID: c, Expiration: "19/12/2025", ContractType: "M", Strike: strikeRecord(t, "23,000.00")}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	counts := map[string]int{}
	for _, c := range []string{"cycle-a", "cycle-b"} {
		f, err := os.Open(Path(dir, now, c))
		if err != nil {
			t.Fatalf("open %s: %v", c, err)
		}
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			var rec Record
			if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if rec.Strike.Strike.Text != "23,000.00" || rec.Strike.Call.Price != "12.5" {
				t.Fatalf("record = %+v", rec)
			}
			counts[c]++
		}
		f.Close()
	}
	if counts["cycle-a"] != 2 || counts["cycle-b"] != 1 {
		t.Fatalf("counts = %v; want a=2 b=1", counts)
	}
}

func TestWriteAfterCloseFails(t *testing.T) {
	j := New(t.TempDir(), 1, 1)
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := j.Write(Record{CycleID: "x"}); err == nil {
		t.Fatal("Write() after Close error = nil; want error")
	}
}
