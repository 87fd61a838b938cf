package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tasktango/internal/api"
	"tasktango/internal/auth"
	"tasktango/internal/commands"
	"tasktango/internal/config"
	"tasktango/internal/content"
	"tasktango/internal/directory"
	"tasktango/internal/models"
	"tasktango/internal/storage"
	"tasktango/internal/ws"
)

type options struct {
	username string
	password string
	email    string
	logout   bool
	channels bool
	chats    bool
	target   commands.Target
	history  bool
	send     string
	listen   bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("tasktango", flag.ContinueOnError)
	fs.StringVar(&opts.username, "user", "", "Username to log in with")
	fs.StringVar(&opts.password, "password", "", "Password (defaults to TASKTANGO_PASSWORD)")
	fs.StringVar(&opts.email, "email", "", "Register a new account with this email")
	fs.BoolVar(&opts.logout, "logout", false, "Forget the saved session")
	fs.BoolVar(&opts.channels, "channels", false, "List channels")
	fs.BoolVar(&opts.chats, "chats", false, "List chats stored locally with their newest message")
	fs.StringVar(&opts.target.ChannelID, "channel", "", "Channel id to read or write")
	fs.StringVar(&opts.target.PeerID, "to", "", "stringId of the direct message peer")
	fs.BoolVar(&opts.history, "history", false, "Print the history of -channel or -to")
	fs.StringVar(&opts.send, "send", "", "Message to send to -channel or -to")
	fs.BoolVar(&opts.listen, "listen", false, "Print incoming messages until interrupted")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.password == "" {
		opts.password = os.Getenv("TASKTANGO_PASSWORD")
	}
	if (opts.history || opts.send != "") && opts.target.Validate() != nil {
		return opts, opts.target.Validate()
	}
	return opts, nil
}

func run(ctx context.Context, args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	// Stops the background cache cleanup started below.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(false)
	if err != nil {
		return err
	}

	bbStorage, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = bbStorage.Close() }()

	client := api.New(cfg.APIURL, cfg.HTTPTimeout)
	session, err := auth.NewSession(ctx, auth.Config{TokenExpiry: cfg.TokenExpiry}, client, bbStorage)
	if err != nil {
		return err
	}

	if opts.logout {
		return session.Logout()
	}

	user, err := signIn(ctx, session, opts)
	if err != nil {
		return err
	}
	commands.PrintUser(os.Stdout, user)

	users := directory.New()
	if known, err := bbStorage.ListUsers(); err == nil {
		for _, u := range known {
			_ = users.Upsert(u)
		}
	}
	_ = users.Upsert(user)

	hub := ws.NewHub(ctx, ws.HubConfig{MaxRecords: cfg.HistoryLimit}, session, users, bbStorage)
	if err := hub.Seed(); err != nil {
		log.Printf("failed to load local history: %v", err)
	}
	// Keep the local user cache in step with what the server pushes.
	unsubscribe := users.Subscribe(func(change models.UserChange) {
		if err := bbStorage.UpsertUser(change.User); err != nil {
			log.Printf("failed to store user %s: %v", change.User.StringID, err)
		}
	})
	defer unsubscribe()

	env := &commands.Env{
		API:          client,
		Session:      session,
		Hub:          hub,
		Channels:     bbStorage,
		Out:          os.Stdout,
		HistoryLimit: cfg.HistoryLimit,
	}

	if opts.channels {
		if err := commands.ListChannels(ctx, env); err != nil {
			return err
		}
	}
	if opts.chats {
		commands.ListChats(env)
	}
	if opts.history {
		if err := commands.History(ctx, env, opts.target); err != nil {
			return err
		}
	}
	if opts.send == "" && !opts.listen {
		return nil
	}

	token, err := session.Token()
	if err != nil {
		return err
	}
	dialer := ws.NewDialer(cfg.WSURL, cfg.HTTPTimeout)
	wsConn, err := dialer.Dial(ctx, token)
	if err != nil {
		return err
	}
	conn := ws.NewConnection(hub, wsConn)

	g, gCtx := errgroup.WithContext(ctx)
	connCtx, stopConn := context.WithCancel(gCtx)
	defer stopConn()

	g.Go(func() error {
		return conn.Handle(connCtx)
	})

	g.Go(func() error {
		defer stopConn()
		if opts.send != "" {
			if err := commands.Send(gCtx, env, conn, opts.target, opts.send, 5*time.Second); err != nil {
				return err
			}
		}
		if opts.listen {
			return commands.Listen(gCtx, env)
		}
		return nil
	})

	return g.Wait()
}

func signIn(ctx context.Context, session *auth.Session, opts options) (models.User, error) {
	if opts.username == "" {
		user, err := session.Restore(ctx)
		if errors.Is(err, auth.ErrNotLoggedIn) || errors.Is(err, auth.ErrSessionExpired) {
			return models.User{}, fmt.Errorf("%w: log in with -user", err)
		}
		return user, err
	}
	if opts.password == "" {
		return models.User{}, errors.New("-password or TASKTANGO_PASSWORD is required")
	}
	if opts.email != "" {
		if err := content.ValidateUsername(opts.username); err != nil {
			return models.User{}, err
		}
		return session.Register(ctx, opts.email, opts.username, opts.password)
	}
	return session.Login(ctx, opts.username, opts.password)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("Application error: %v", err)
	}
}
