package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/matchday-app/matchday-go/api"
	"github.com/matchday-app/matchday-go/internal/config"
	"github.com/matchday-app/matchday-go/internal/utils"
	"github.com/matchday-app/matchday-go/notifications"
	"github.com/matchday-app/matchday-go/push"
	"github.com/matchday-app/matchday-go/realtime"
	"github.com/matchday-app/matchday-go/session"
	"github.com/matchday-app/matchday-go/tokenstore"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "matchday: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()
	cfg := config.New()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	store := tokenstore.NewFileStore(cfg.GetCredentialsFile())
	apiClient := api.New(cfg.GetAPIBaseURL(), store,
		api.WithHTTPClient(&http.Client{Timeout: cfg.GetRequestTimeout()}),
		api.WithLogger(logger),
	)
	manager := session.New(apiClient, store, session.WithLogger(logger))

	var inbox *notifications.Store
	inbox = notifications.NewStore(notifications.WithOnChange(func() {
		fmt.Printf("unread: %d\n", inbox.UnreadCount())
	}))
	inboxClient := notifications.NewClient(apiClient, inbox)
	service := realtime.NewService(cfg.GetRealtimeURL(), inbox,
		realtime.WithServiceLogger(logger),
		realtime.WithWriteTimeout(cfg.GetRealtimeWriteTimeout()),
	)

	ctx := context.Background()
	if err := manager.Restore(ctx); err != nil {
		return err
	}

	if len(args) == 0 {
		args = []string{"status"}
	}

	switch args[0] {
	case "login":
		if len(args) != 3 {
			return errors.New("usage: matchday login <email> <password>")
		}
		if err := manager.Login(ctx, args[1], args[2]); err != nil {
			return fmt.Errorf("%s", manager.Snapshot().Err)
		}
		fmt.Printf("logged in as %s\n", utils.Value(manager.Snapshot().User).Name)

	case "logout":
		manager.Logout(ctx)
		fmt.Println("logged out")

	case "me":
		user, err := manager.Me(ctx)
		if err != nil {
			return fmt.Errorf("%s", manager.Snapshot().Err)
		}
		fmt.Printf("%s <%s> (id %s)\n", user.Name, user.Email, user.ID)

	case "status":
		snapshot := manager.Snapshot()
		if snapshot.Authenticated() {
			fmt.Printf("authenticated as %s (id %s)\n", snapshot.User.Name, snapshot.User.ID)
		} else {
			fmt.Printf("not authenticated (%s)\n", snapshot.Status)
		}

	case "listen":
		if !manager.Snapshot().Authenticated() {
			return errors.New("not authenticated, run: matchday login <email> <password>")
		}
		displayAppName(cfg.GetAppName())
		service.Init(manager)
		defer service.Teardown()
		if err := inboxClient.Fetch(ctx); err != nil {
			logger.Warn().Err(err).Msg("initial notification fetch failed")
		}
		fmt.Printf("listening for notifications, unread: %d\n", inbox.UnreadCount())
		waitForStopSignal()

	case "push-test":
		if len(args) != 4 {
			return errors.New("usage: matchday push-test <delivery-token> <title> <body>")
		}
		notifier := push.New(cfg.GetPushTestEndpoint(), push.WithLogger(logger))
		if err := notifier.Send(ctx, push.Message{To: args[1], Title: args[2], Body: args[3]}); err != nil {
			return err
		}
		fmt.Println("push delivery requested")

	default:
		return fmt.Errorf("unknown command %q (login, logout, me, status, listen, push-test)", args[0])
	}
	return nil
}

func displayAppName(appName string) {
	appNameFigure := figure.NewFigure(appName, "", true)
	appNameFigure.Print()
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}
