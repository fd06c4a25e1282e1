package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ekdusrla/ssukssuk-closet/internal/devserver"
	"go.uber.org/zap"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "listen address")
	users := flag.String("users", "me:pw,bob:pw,alice:pw", "comma-separated nickname:password pairs")
	seed := flag.Bool("seed", true, "create a few conversations between the first users")
	unread := flag.Bool("unread", true, "report unread counts in the room list")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	opts := []devserver.Option{devserver.WithLogger(logger)}
	if *unread {
		opts = append(opts, devserver.WithUnreadCounts())
	}
	srv := devserver.New(opts...)

	var nicks []string
	for _, pair := range strings.Split(*users, ",") {
		nick, pw, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || nick == "" {
			logger.Fatal("invalid user", zap.String("pair", pair))
		}
		srv.AddUser(nick, pw)
		nicks = append(nicks, nick)
	}
	if *seed && len(nicks) >= 2 {
		seedRooms(srv, nicks, time.Now())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("users ready", zap.Strings("users", nicks), zap.Bool("seeded", *seed))
	if err := srv.ListenAndServe(ctx, *addr); err != nil {
		logger.Fatal("dev server failed", zap.Error(err))
	}
}

// seedRooms gives the first user a conversation with every other user.
func seedRooms(srv *devserver.Server, nicks []string, now time.Time) {
	me := nicks[0]
	lines := []string{
		"안녕하세요, 올려주신 코트 아직 판매 중인가요?",
		"네 판매 중이에요!",
		"사이즈가 어떻게 되나요?",
	}
	for i, other := range nicks[1:] {
		start := now.Add(-time.Duration(len(nicks)-i) * 26 * time.Hour)
		for j, line := range lines {
			from, to := other, me
			if j%2 == 1 {
				from, to = me, other
			}
			srv.Seed(from, to, line, start.Add(time.Duration(j)*3*time.Minute))
		}
	}
}
