package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/nhle/studyflow/internal/model"
	"github.com/nhle/studyflow/internal/server"
	"github.com/nhle/studyflow/internal/sync"
	"github.com/nhle/studyflow/internal/theme"
)

func runServe(ctx context.Context, e *env) error {
	orch, err := e.orchestrator(ctx)
	if err != nil {
		return err
	}

	if e.cfg.Scheduler.Enabled {
		interval := time.Duration(e.cfg.Scheduler.IntervalSec) * time.Second
		poller := sync.NewPoller(e.store, orch, interval, e.loc, e.logger)
		poller.Start(ctx)
		defer poller.Stop()
	}

	return server.New(e.store, orch, e.cfg.Server, e.logger).ListenAndServe(ctx)
}

func runSync(ctx context.Context, e *env, addr string) error {
	u, err := e.userByEmail(ctx, addr)
	if err != nil {
		return err
	}
	orch, err := e.orchestrator(ctx)
	if err != nil {
		return err
	}

	res, err := orch.Run(ctx, u.ID)
	if err != nil {
		return err
	}
	fmt.Printf("%s %d new pending task(s) from %d email(s) and %d calendar event(s)\n",
		theme.HeaderStyle.Render("synced"), res.CreatedPending, res.EmailsConsidered, res.EventsFetched)
	if res.DiscoveredCourses > 0 {
		fmt.Println(theme.HelpStyle.Render(fmt.Sprintf("%d new course(s) discovered", res.DiscoveredCourses)))
	}
	return nil
}

func runUserAdd(ctx context.Context, e *env, addr string) error {
	u, err := e.store.CreateUser(ctx, addr)
	if err != nil {
		return err
	}
	token, err := e.store.CreateSession(ctx, u.ID)
	if err != nil {
		return err
	}
	fmt.Printf("user:    %s (%s)\n", u.Email, u.ID)
	fmt.Printf("session: %s\n", token)
	return nil
}

func runUserList(ctx context.Context, e *env) error {
	users, err := e.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Printf("%s\t%s\n", u.ID, u.Email)
	}
	return nil
}

func runTasks(ctx context.Context, e *env, addr string) error {
	u, err := e.userByEmail(ctx, addr)
	if err != nil {
		return err
	}
	tasks, err := e.store.ListTasks(ctx, u.ID)
	if err != nil {
		return err
	}
	fmt.Println(theme.TaskTable(tasks, time.Now(), e.loc))
	return nil
}

const (
	reviewAccept = "accept"
	reviewReject = "reject"
	reviewSkip   = "skip"
	reviewQuit   = "quit"
)

// runInbox walks the pending tasks and asks what to do with each.
func runInbox(ctx context.Context, e *env, addr string) error {
	u, err := e.userByEmail(ctx, addr)
	if err != nil {
		return err
	}
	pending, err := e.store.ListPending(ctx, u.ID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println(theme.HelpStyle.Render("Inbox is empty."))
		return nil
	}

	var accepted, rejected int
	for i, t := range pending {
		choice := reviewSkip
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewNote().
					Title(fmt.Sprintf("Pending %d of %d", i+1, len(pending))).
					Description(theme.TaskCard(t, e.loc)),
				huh.NewSelect[string]().
					Title("Action").
					Options(
						huh.NewOption("Accept", reviewAccept),
						huh.NewOption("Reject", reviewReject),
						huh.NewOption("Skip", reviewSkip),
						huh.NewOption("Quit", reviewQuit),
					).
					Value(&choice),
			),
		)
		if err := form.RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				break
			}
			return err
		}

		switch choice {
		case reviewAccept:
			if _, err := e.store.AcceptPending(ctx, u.ID, t.ID); err != nil {
				return err
			}
			accepted++
		case reviewReject:
			if err := e.store.RejectPending(ctx, u.ID, t.ID); err != nil {
				return err
			}
			rejected++
		case reviewQuit:
			return printInboxSummary(accepted, rejected)
		}
	}
	return printInboxSummary(accepted, rejected)
}

func printInboxSummary(accepted, rejected int) error {
	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		theme.TypeStyle(model.TaskTypeReading).Render(fmt.Sprintf("%d accepted", accepted)),
		theme.SourceStyle(model.TaskSourceCanvas).Render(fmt.Sprintf("%d rejected", rejected)),
	)
	fmt.Println(summary)
	return nil
}

func runGmailConnect(ctx context.Context, e *env, addr string) error {
	u, err := e.userByEmail(ctx, addr)
	if err != nil {
		return err
	}
	src, err := e.gmailSource()
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Open this URL in a browser and approve read-only access:")
	fmt.Fprintln(os.Stdout, src.AuthURL(uuid.NewString()))

	var code string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Authorization code").
			Value(&code).
			Validate(func(s string) error {
				if s == "" {
					return errors.New("code is required")
				}
				return nil
			}),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return err
	}

	if err := src.Exchange(ctx, u.ID, code); err != nil {
		return err
	}
	fmt.Println(theme.HeaderStyle.Render("gmail connected") + " " + u.Email)
	return nil
}
