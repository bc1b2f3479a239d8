package connectivity

import (
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

type testReceiver struct {
	calls []bool
}

func (r *testReceiver) SetOnline(online bool) {
	r.calls = append(r.calls, online)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    bool
		wantErr bool
	}{
		{"online", `{"online":true}`, true, false},
		{"offline", `{"online":false}`, false, false},
		{"extra fields", `{"online":true,"iface":"wlan0"}`, true, false},
		{"missing field", `{"state":"up"}`, false, true},
		{"not json", `online`, false, true},
		{"wrong type", `{"online":"yes"}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidNotification) {
					t.Errorf("expected ErrInvalidNotification, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse(%s) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}

func TestHandler_ForwardsValidNotifications(t *testing.T) {
	r := &testReceiver{}
	s := &Subscriber{logger: zerolog.Nop()}
	h := s.handler(r)

	h(&nats.Msg{Subject: "device.connectivity", Data: []byte(`{"online":false}`)})
	h(&nats.Msg{Subject: "device.connectivity", Data: []byte(`garbage`)})
	h(&nats.Msg{Subject: "device.connectivity", Data: []byte(`{"online":true}`)})

	if len(r.calls) != 2 || r.calls[0] || !r.calls[1] {
		t.Errorf("expected [false true], got %v", r.calls)
	}
}

func TestSubscriber_CloseNil(t *testing.T) {
	var s *Subscriber
	if err := s.Close(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}
