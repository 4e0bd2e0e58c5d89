package browser

import (
	"context"
	"net"
	"slices"
	"testing"
)

func TestConfigArgs(t *testing.T) {
	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: 9230, ProfileDir: "/tmp/p", Headless: true, ExtraArgs: []string{"--mute-audio"}})
	args := l.cfg.args()

	for _, want := range []string{
		"--remote-debugging-port=9230",
		"--remote-debugging-address=127.0.0.1",
		"--user-data-dir=/tmp/p",
		"--window-size=1024,768",
		"--headless=new",
		"--mute-audio",
	} {
		if !slices.Contains(args, want) {
			t.Fatalf("args() missing %q: %v", want, args)
		}
	}
	if last := args[len(args)-1]; last != "about:blank" {
		t.Fatalf("last arg = %q; want start url", last)
	}
}

func TestLaunchSkipsWhenPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: port, ProfileDir: t.TempDir()})
	if err := l.Launch(context.Background()); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if l.Running() {
		t.Fatalf("Running() = true; want false when reusing an existing browser")
	}
	l.Stop()
}
