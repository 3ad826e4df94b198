package types

import (
	"testing"
	"time"
)

func TestEntityAge(t *testing.T) {
	if (Entity{}).Age() != 0 {
		t.Error("zero entity should report zero age")
	}

	e := Entity{CreatedAt: time.Now().Add(-2 * time.Hour)}
	if !e.IsStale(time.Hour) {
		t.Error("expected two-hour-old entity to be stale after one hour")
	}
	if NewEntity().IsStale(time.Hour) {
		t.Error("fresh entity should not be stale")
	}
}
