package errors

import (
	"fmt"
	"testing"
)

func appendN(l *ErrorLog, n int) {
	for i := 1; i <= n; i++ {
		l.Append(ErrorRecord{Message: fmt.Sprintf("r%d", i)})
	}
}

func messages(records []ErrorRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Message
	}
	return out
}

func TestErrorLog_RingBuffer(t *testing.T) {
	l := NewErrorLog(3)

	appendN(l, 2)
	if got := messages(l.Snapshot()); fmt.Sprint(got) != "[r1 r2]" {
		t.Errorf("Snapshot() = %v, want [r1 r2]", got)
	}

	_, evicted := l.Append(ErrorRecord{Message: "r3"})
	if evicted {
		t.Error("Append() into a non-full ring reported eviction")
	}
	_, evicted = l.Append(ErrorRecord{Message: "r4"})
	if !evicted {
		t.Error("Append() into a full ring did not report eviction")
	}
	l.Append(ErrorRecord{Message: "r5"})

	if got := messages(l.Snapshot()); fmt.Sprint(got) != "[r3 r4 r5]" {
		t.Errorf("Snapshot() = %v, want [r3 r4 r5]", got)
	}
	if l.Len() != 3 {
		t.Errorf("Len() = %d, want 3", l.Len())
	}
	if l.Evicted() != 2 {
		t.Errorf("Evicted() = %d, want 2", l.Evicted())
	}
}

func TestErrorLog_SequenceNumbers(t *testing.T) {
	l := NewErrorLog(2)

	for i := 1; i <= 4; i++ {
		rec, _ := l.Append(ErrorRecord{})
		if rec.Seq != uint64(i) {
			t.Errorf("Append() #%d Seq = %d", i, rec.Seq)
		}
	}

	if removed := l.Clear(); removed != 2 {
		t.Errorf("Clear() = %d, want 2", removed)
	}
	rec, _ := l.Append(ErrorRecord{})
	if rec.Seq != 5 {
		t.Errorf("Seq after Clear = %d, want 5", rec.Seq)
	}
}

func TestErrorLog_Unbounded(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		l := NewErrorLog(capacity)
		appendN(l, 2500)
		if l.Len() != 2500 {
			t.Errorf("capacity %d: Len() = %d, want 2500", capacity, l.Len())
		}
		if l.Evicted() != 0 {
			t.Errorf("capacity %d: Evicted() = %d, want 0", capacity, l.Evicted())
		}
	}
}

func TestErrorLog_SnapshotIsCopy(t *testing.T) {
	l := NewErrorLog(5)
	appendN(l, 2)

	snap := l.Snapshot()
	snap[0].Message = "mutated"

	if l.Snapshot()[0].Message != "r1" {
		t.Error("mutating a snapshot changed the log")
	}
}

func TestErrorLog_ClearEmpty(t *testing.T) {
	l := NewErrorLog(5)
	if removed := l.Clear(); removed != 0 {
		t.Errorf("Clear() on empty log = %d", removed)
	}
	if len(l.Snapshot()) != 0 {
		t.Error("Snapshot() of empty log not empty")
	}
}
