package domain

import (
	"strings"
	"testing"
	"time"
)

func TestConversation_IncludesIsSymmetric(t *testing.T) {
	ab := Between("u1", "u2")
	ba := Between("u2", "u1")

	cases := []struct {
		name string
		msg  Message
		want bool
	}{
		{"a to b", Message{SenderID: "u1", ReceiverID: "u2"}, true},
		{"b to a", Message{SenderID: "u2", ReceiverID: "u1"}, true},
		{"a to c", Message{SenderID: "u1", ReceiverID: "u3"}, false},
		{"c to b", Message{SenderID: "u3", ReceiverID: "u2"}, false},
		{"self a", Message{SenderID: "u1", ReceiverID: "u1"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ab.Includes(&tc.msg); got != tc.want {
				t.Fatalf("Between(u1,u2).Includes = %v, want %v", got, tc.want)
			}
			if got := ba.Includes(&tc.msg); got != tc.want {
				t.Fatalf("Between(u2,u1).Includes = %v, want %v", got, tc.want)
			}
		})
	}

	if !ab.Equal(ba) {
		t.Fatalf("expected conversation(u1,u2) == conversation(u2,u1)")
	}
	if ab.Key() != ba.Key() {
		t.Fatalf("key mismatch: %q vs %q", ab.Key(), ba.Key())
	}
}

func TestConversation_Self(t *testing.T) {
	c := Between("u1", "u1")
	if !c.IsSelf() {
		t.Fatalf("expected self conversation")
	}
	if !c.Includes(&Message{SenderID: "u1", ReceiverID: "u1"}) {
		t.Fatalf("self conversation must include u1->u1")
	}
	if c.Includes(&Message{SenderID: "u1", ReceiverID: "u2"}) {
		t.Fatalf("self conversation must not include u1->u2")
	}
}

func TestMessage_BeforeUsesSeqOnTies(t *testing.T) {
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	first := Message{CreatedAt: ts, Seq: 1}
	second := Message{CreatedAt: ts, Seq: 2}
	if !first.Before(&second) || second.Before(&first) {
		t.Fatalf("ties must be broken by insertion order")
	}
	later := Message{CreatedAt: ts.Add(time.Millisecond), Seq: 0}
	if !second.Before(&later) {
		t.Fatalf("created_at must win over seq")
	}
}

func TestIsImageContent(t *testing.T) {
	if !IsImageContent("data:image/jpeg;base64,AAAA") {
		t.Fatalf("jpeg data uri must be detected")
	}
	if IsImageContent("hi data:image") {
		t.Fatalf("prefix only")
	}
}

func TestConversation_KeyIsUnambiguous(t *testing.T) {
	pairs := []Conversation{
		Between("a:b", "c"),
		Between("a", "b:c"),
		Between("a.b", "c"),
		Between("a", "b.c"),
		Between("a*", ">"),
		Between("", "a:b"),
		Between("a", "b"),
	}
	seen := map[string]Conversation{}
	for _, c := range pairs {
		k := c.Key()
		if prev, dup := seen[k]; dup {
			t.Fatalf("%+v and %+v share key %q", prev, c, k)
		}
		seen[k] = c
		if strings.ContainsAny(k, ".*> \t\r\n") {
			t.Fatalf("key %q is not a valid NATS subject token", k)
		}
	}
	if Between("b:c", "a").Key() != Between("a", "b:c").Key() {
		t.Fatalf("key must not depend on argument order")
	}
}
