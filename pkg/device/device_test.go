package device_test

import (
	"bytes"
	"testing"

	"github.com/danielacorner/frame-host-2/pkg/device"
)

func TestMessage_Encode(t *testing.T) {
	t.Parallel()

	msg := device.PlainText("hi")
	got := msg.Encode()
	want := []byte{0x0b, 'h', 'i'}
	if !bytes.Equal(got, want) {
		t.Fatalf("Encode() = %v, want %v", got, want)
	}
}

func TestMessage_EncodeUTF8(t *testing.T) {
	t.Parallel()

	msg := device.PlainText("héllo")
	got := msg.Encode()
	if got[0] != device.CodePlainText {
		t.Fatalf("code byte = %#x, want %#x", got[0], device.CodePlainText)
	}
	if string(got[1:]) != "héllo" {
		t.Errorf("payload = %q, want %q", got[1:], "héllo")
	}
}

func TestClear_IsSingleSpace(t *testing.T) {
	t.Parallel()

	got := device.Clear().Encode()
	want := []byte{0x0b, ' '}
	if !bytes.Equal(got, want) {
		t.Fatalf("Clear().Encode() = %v, want %v", got, want)
	}
}
