package browser

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

func TestArgsCarryQuotesURLLast(t *testing.T) {
	l := NewLauncher(Config{
		CDPAddress: "127.0.0.1",
		CDPPort:    9222,
		StartURL:   "https://www.eurex.com/ex-en/markets/idx/dax/DAX-Options-139884",
		ProfileDir: "/tmp/odax-profile",
		Headless:   true,
	})
	args := l.args()
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"--remote-debugging-port=9222",
		"--remote-debugging-address=127.0.0.1",
		"--user-data-dir=/tmp/odax-profile",
		"--window-size=1920,1080",
		"--headless=new",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args() missing %q: %v", want, args)
		}
	}
	if got := args[len(args)-1]; got != l.cfg.StartURL {
		t.Fatalf("last arg = %q; want start url", got)
	}
}

func TestArgsWithoutHeadless(t *testing.T) {
	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: 9222})
	for _, a := range l.args() {
		if strings.HasPrefix(a, "--headless") {
			t.Fatalf("args() = %v; want no headless flag", l.args())
		}
	}
}

func TestLaunchSkipsWhenPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: port, ProfileDir: t.TempDir()})
	if err := l.Launch(context.Background()); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if l.Running() {
		t.Fatal("Running() = true; want false when the port is already served")
	}
}

func TestWaitForCDPHonoursContext(t *testing.T) {
	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: 1, ReadyTimeout: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := l.waitForCDP(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("waitForCDP() error = %v; want deadline exceeded", err)
	}
}
