package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
)

type fakeStream struct {
	io.Reader
	closes *int32
}

func (s *fakeStream) Close() error {
	atomic.AddInt32(s.closes, 1)
	return nil
}

type fakeMic struct {
	closes int32
	err    error
}

func (m *fakeMic) Open(ctx context.Context) (Stream, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &fakeStream{Reader: strings.NewReader("pcm"), closes: &m.closes}, nil
}

func (m *fakeMic) Format() Format { return Format{SampleRate: 16000, Channels: 1, Precision: 2} }

func TestRegistryReleaseIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	mic := &fakeMic{}

	s, err := reg.AcquireStream(context.Background(), mic)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if streams, _ := reg.Outstanding(); streams != 1 {
		t.Fatalf("streams = %d, want 1", streams)
	}

	for i := 0; i < 3; i++ {
		if err := reg.Release(s); err != nil {
			t.Fatalf("release %d: %v", i, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close after release: %v", err)
	}
	if got := atomic.LoadInt32(&mic.closes); got != 1 {
		t.Fatalf("underlying closes = %d, want 1", got)
	}
	if streams, _ := reg.Outstanding(); streams != 0 {
		t.Fatalf("streams = %d, want 0", streams)
	}
}

func TestRegistryAcquireDenied(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.AcquireStream(context.Background(), &fakeMic{err: ErrPermissionDenied})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if streams, handles := reg.Outstanding(); streams != 0 || handles != 0 {
		t.Fatalf("outstanding = %d/%d, want 0/0", streams, handles)
	}
}

func TestRegistryHandles(t *testing.T) {
	reg := NewRegistry()
	url, err := reg.CreateHandle([]byte{1, 2, 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(url, handlePrefix) {
		t.Fatalf("url = %q", url)
	}
	data, err := reg.Open(url)
	if err != nil || len(data) != 3 {
		t.Fatalf("open = %v, %v", data, err)
	}

	reg.Revoke(url)
	reg.Revoke(url)
	if _, err := reg.Open(url); err == nil {
		t.Fatal("revoked handle must not resolve")
	}
	if _, handles := reg.Outstanding(); handles != 0 {
		t.Fatalf("handles = %d, want 0", handles)
	}
}

func TestRegistryCloseReleasesEverything(t *testing.T) {
	reg := NewRegistry()
	mic := &fakeMic{}
	if _, err := reg.AcquireStream(context.Background(), mic); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := reg.CreateHandle([]byte("x")); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := reg.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if streams, handles := reg.Outstanding(); streams != 0 || handles != 0 {
		t.Fatalf("outstanding = %d/%d, want 0/0", streams, handles)
	}
	if got := atomic.LoadInt32(&mic.closes); got != 1 {
		t.Fatalf("closes = %d, want 1", got)
	}
	if _, err := reg.AcquireStream(context.Background(), mic); !errors.Is(err, ErrRegistryClosed) {
		t.Fatalf("err = %v, want ErrRegistryClosed", err)
	}
	if _, err := reg.CreateHandle(nil); !errors.Is(err, ErrRegistryClosed) {
		t.Fatalf("err = %v, want ErrRegistryClosed", err)
	}
}
