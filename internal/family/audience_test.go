package family

import (
	"reflect"
	"testing"

	"famplan/internal/model"
)

func testRoster(parentEmptyWatchAll bool) *Roster {
	return NewRoster([]string{"amit", "alin", "ravid"}, []string{"dana", "yoav"}, parentEmptyWatchAll)
}

func TestDecodeRecipients(t *testing.T) {
	t.Parallel()
	r := testRoster(false)

	tests := []struct {
		name     string
		encoding string
		want     []string
	}{
		{name: "single", encoding: "alin", want: []string{"alin"}},
		{name: "combined", encoding: "amit_alin", want: []string{"amit", "alin"}},
		{name: "duplicate parts", encoding: "amit_amit", want: []string{"amit"}},
		{name: "mixed case with spaces", encoding: " Amit_ALIN ", want: []string{"amit", "alin"}},
		{name: "substring fallback", encoding: "pickup-amit+alin", want: []string{"amit", "alin"}},
		{name: "unknown only", encoding: "stranger"},
		{name: "empty"},
		{name: "separators only", encoding: "___"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := r.Decode(tt.encoding)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Decode(%q) = %v, want %v", tt.encoding, got, tt.want)
			}
		})
	}
}

func TestIncludes(t *testing.T) {
	t.Parallel()
	r := testRoster(false)
	audience := r.Decode("amit_alin")

	tests := []struct {
		name string
		sub  model.Subscription
		want bool
	}{
		{name: "anonymous install receives everything", sub: model.Subscription{}, want: true},
		{name: "addressed child", sub: model.Subscription{Owner: "amit"}, want: true},
		{name: "other child excluded", sub: model.Subscription{Owner: "ravid"}, want: false},
		{name: "owner case-insensitive", sub: model.Subscription{Owner: "Alin"}, want: true},
		{name: "parent receive_all", sub: model.Subscription{Owner: "dana", ReceiveAll: true}, want: true},
		{name: "parent receive_all ignores watch list", sub: model.Subscription{Owner: "dana", ReceiveAll: true, Watch: []string{"ravid"}}, want: true},
		{name: "parent watching addressed child", sub: model.Subscription{Owner: "dana", Watch: []string{"alin"}}, want: true},
		{name: "parent watching other child", sub: model.Subscription{Owner: "dana", Watch: []string{"ravid"}}, want: false},
		{name: "parent empty watch receives nothing", sub: model.Subscription{Owner: "yoav"}, want: false},
		{name: "unrecognized owner receives nothing", sub: model.Subscription{Owner: "stranger"}, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Includes(tt.sub, audience); got != tt.want {
				t.Fatalf("Includes(%+v) = %v, want %v", tt.sub, got, tt.want)
			}
		})
	}
}

func TestIncludesParentEmptyWatchPermissive(t *testing.T) {
	t.Parallel()
	r := testRoster(true)
	audience := r.Decode("ravid")

	if !r.Includes(model.Subscription{Owner: "dana"}, audience) {
		t.Fatal("permissive default: parent with empty watch list should receive the task")
	}
	// An explicit non-matching watch list still excludes.
	if r.Includes(model.Subscription{Owner: "dana", Watch: []string{"amit"}}, audience) {
		t.Fatal("explicit watch list must still be honored")
	}
}
