package hub

import (
	"errors"
	"testing"
)

func TestDecodeDocument_Moment(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
	}{
		{
			name: "legacy document without version",
			json: `{"id":"k3","kind":"image","mediaPath":"media/al/1_a.jpg","author":"Al","handle":"al","created":1,"likes":0,"liked":false,"comments":[]}`,
		},
		{
			name: "unknown fields are tolerated",
			json: `{"v":1,"id":"k3","kind":"video","mediaPath":"m","handle":"al","created":5,"reactions":{"x":1}}`,
		},
		{
			name:    "newer schema version",
			json:    `{"v":2,"id":"k3","kind":"image","mediaPath":"m","handle":"al","created":5}`,
			wantErr: true,
		},
		{
			name:    "missing media path",
			json:    `{"id":"k3","kind":"image","handle":"al","created":5}`,
			wantErr: true,
		},
		{
			name:    "unknown kind",
			json:    `{"id":"k3","kind":"audio","mediaPath":"m","handle":"al","created":5}`,
			wantErr: true,
		},
		{
			name:    "not json",
			json:    `<html>`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Moment
			err := decodeDocument([]byte(tt.json), &m)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeDocument() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("decodeDocument() error = %v, want ErrInvalidDocument", err)
			}
		})
	}
}

func TestDecodeDocument_Thread(t *testing.T) {
	var th Thread
	if err := decodeDocument([]byte(`{"messages":[{"id":"1","from":"a","to":"b","text":"hi","ts":1,"readBy":["a"]}]}`), &th); err != nil {
		t.Fatalf("decodeDocument() error = %v", err)
	}
	if len(th.Messages) != 1 || !th.Messages[0].HasRead("a") {
		t.Errorf("decoded thread = %+v", th)
	}

	if err := decodeDocument([]byte(`{"messages":[{"id":"1","text":"hi"}]}`), &th); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("decodeDocument() error = %v, want ErrInvalidDocument", err)
	}
}

func TestUserDirectory_Find(t *testing.T) {
	dir := &UserDirectory{Users: []User{{Handle: "Alice"}, {Handle: "bob"}}}
	tests := []struct {
		handle string
		want   int
	}{
		{"alice", 0},
		{"ALICE", 0},
		{"Bob", 1},
		{"carol", -1},
	}
	for _, tt := range tests {
		if got := dir.find(tt.handle); got != tt.want {
			t.Errorf("find(%q) = %d, want %d", tt.handle, got, tt.want)
		}
	}
}

func TestUser_DisplayName(t *testing.T) {
	if got := (User{Handle: "al"}).DisplayName(); got != "al" {
		t.Errorf("DisplayName() = %q, want %q", got, "al")
	}
	if got := (User{Handle: "al", Display: "Al B"}).DisplayName(); got != "Al B" {
		t.Errorf("DisplayName() = %q, want %q", got, "Al B")
	}
}
