package audit

import (
	"reflect"
	"testing"
)

func TestBuildBaseQueryNumbersPlaceholders(t *testing.T) {
	query, args := buildBaseQuery("SELECT COUNT(1)", Filter{Action: ActionBatchCommitted, ActorUser: "u-1"})
	want := "SELECT COUNT(1) FROM audit_events WHERE 1=1 AND action = $1 AND actor_user_id = $2"
	if query != want {
		t.Fatalf("unexpected query %q", query)
	}
	if !reflect.DeepEqual(args, []any{ActionBatchCommitted, "u-1"}) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestBuildBaseQueryWithoutFilters(t *testing.T) {
	query, args := buildBaseQuery("SELECT id", Filter{})
	if query != "SELECT id FROM audit_events WHERE 1=1" || len(args) != 0 {
		t.Fatalf("unexpected query %q %v", query, args)
	}
}

func TestMarshalOptional(t *testing.T) {
	payload, err := marshalOptional(nil)
	if err != nil || payload != nil {
		t.Fatalf("expected nil payload, got %s %v", payload, err)
	}
	payload, err = marshalOptional(map[string]int{"total": 3})
	if err != nil || string(payload) != `{"total":3}` {
		t.Fatalf("unexpected payload %s %v", payload, err)
	}
}
