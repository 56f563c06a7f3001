package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/CaioWing/harbor-console/internal/auth"
	"github.com/CaioWing/harbor-console/internal/client"
	"github.com/CaioWing/harbor-console/internal/domain"
	"github.com/CaioWing/harbor-console/internal/logstream"
	"github.com/CaioWing/harbor-console/internal/repository/memory"
	"github.com/CaioWing/harbor-console/internal/service"
	"github.com/CaioWing/harbor-console/internal/transfer"
)

var loginUser string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the backend and print an access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := cliLogger(cfg)
		ctx, stop := signalContext()
		defer stop()

		user := loginUser
		if user == "" {
			user = cfg.Backend.Username
		}
		if user == "" {
			fmt.Fprint(os.Stderr, "Username: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("read username: %w", err)
			}
			user = strings.TrimSpace(line)
		}

		fmt.Fprint(os.Stderr, "Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		cl, err := client.New(cfg.Backend.URL, client.WithLogger(log))
		if err != nil {
			return err
		}
		token, err := cl.Login(ctx, user, string(password))
		if err != nil {
			return err
		}

		if info, err := auth.InspectBackendToken(token); err == nil && !info.ExpiresAt.IsZero() {
			fmt.Fprintf(os.Stderr, "Logged in as %s, token expires %s\n", user, info.ExpiresAt.Local().Format(time.DateTime))
		}
		fmt.Println(token)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload a local artifact in chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := transfer.OpenFile(args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		return runTransfer(func(ctx context.Context, ctrl *transfer.Controller) error {
			return ctrl.StartLocalUpload(ctx, src)
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import URL",
	Short: "Ask the backend to fetch an artifact from a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(func(ctx context.Context, ctrl *transfer.Controller) error {
			return ctrl.StartRemoteImport(ctx, args[0])
		})
	},
}

// progressPrinter reports a transfer on stderr.
type progressPrinter struct {
	transfer.NopObserver
	out io.Writer
}

func (p progressPrinter) OnProgress(pct int) {
	if pct > 0 {
		fmt.Fprintf(p.out, "\rprogress: %3d%%", pct)
	}
}

func (p progressPrinter) OnStatus(s domain.TransferSession) {
	if s.Status.Terminal() {
		fmt.Fprintf(p.out, "\n%s: %s\n", s.Status, s.FileName+s.URL)
	}
}

func (p progressPrinter) OnWarning(detail string) { fmt.Fprintln(p.out, "warning:", detail) }
func (p progressPrinter) OnNotice(msg string)     { fmt.Fprintln(p.out, msg) }

func runTransfer(start func(context.Context, *transfer.Controller) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := cliLogger(cfg)
	ctx, stop := signalContext()
	defer stop()

	cl, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}

	ctrl := transfer.New(cl,
		transfer.WithChunkSize(cfg.Transfer.ChunkSize),
		transfer.WithSettleDelay(0),
		transfer.WithFailurePolicy(transfer.ParseFailurePolicy(cfg.Transfer.HaltOnError)),
		transfer.WithLogger(log),
		transfer.WithObserver(progressPrinter{out: os.Stderr}),
	)
	return start(ctx, ctrl)
}

var (
	gridWatch  bool
	gridSearch string
	gridStart  int
	gridLength int
)

var gridCmd = &cobra.Command{
	Use:       "grid VIEW",
	Short:     "Print one page of a resource view",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"devices", "software", "rollouts", "users"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := cliLogger(cfg)
		ctx, stop := signalContext()
		defer stop()

		cl, err := connect(ctx, cfg, log)
		if err != nil {
			return err
		}

		views, err := service.NewViews(service.ViewDeps{
			Fetcher:      cl,
			Mutator:      cl,
			Audit:        service.NewAuditService(memory.NewAuditRepo(100), log),
			PollInterval: cfg.Grid.PollInterval,
			RefreshDelay: cfg.Grid.RefreshDelay,
			PageLength:   cfg.Grid.PageLength,
			Logger:       log,
		}, cl)
		if err != nil {
			return err
		}
		defer views.Close()

		view, err := views.Get(args[0])
		if err != nil {
			return fmt.Errorf("view %q: %w", args[0], err)
		}

		params := view.Snapshot().Params
		params.Search = gridSearch
		params.Start = gridStart
		if gridLength > 0 {
			params.Length = gridLength
		}
		if err := view.SetParams(ctx, params); err != nil {
			return err
		}
		if err := view.Refresh(ctx); err != nil {
			return err
		}
		printSnapshot(os.Stdout, view.Snapshot())

		if !gridWatch {
			return nil
		}
		unwatch := view.Watch(func(err error) {
			if err != nil {
				log.Warn("refresh failed", "err", err)
				return
			}
			fmt.Fprintln(os.Stdout)
			printSnapshot(os.Stdout, view.Snapshot())
		})
		defer unwatch()

		view.Start(ctx)
		<-ctx.Done()
		return nil
	},
}

func printSnapshot(out io.Writer, snap service.Snapshot) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(snap.Headers, "\t"))
	for _, row := range snap.Cells {
		texts := make([]string, len(row))
		for i, c := range row {
			texts[i] = c.Text
		}
		fmt.Fprintln(tw, strings.Join(texts, "\t"))
	}
	tw.Flush()
	fmt.Fprintf(out, "%d of %d shown (%d total), refreshed %s\n",
		len(snap.IDs), snap.RecordsFiltered, snap.RecordsTotal, snap.LastRefresh.Local().Format(time.TimeOnly))
}

var logsCmd = &cobra.Command{
	Use:   "logs DEVICE",
	Short: "Follow the live log of a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := cliLogger(cfg)
		ctx, stop := signalContext()
		defer stop()

		cl, err := connect(ctx, cfg, log)
		if err != nil {
			return err
		}
		stream, err := logstream.Dial(ctx, cl.BaseURL(), args[0], cl.AuthHeader(), log)
		if err != nil {
			return err
		}
		defer stream.Close()

		var shown string
		lastProgress := -1
		err = stream.Run(ctx, func(snap logstream.Snapshot) {
			if strings.HasPrefix(snap.Text, shown) {
				fmt.Fprint(os.Stdout, snap.Text[len(shown):])
			} else {
				fmt.Fprintln(os.Stdout, "\n--- log restarted ---")
				fmt.Fprint(os.Stdout, snap.Text)
			}
			shown = snap.Text
			if snap.Progress != nil && *snap.Progress != lastProgress {
				lastProgress = *snap.Progress
				fmt.Fprintf(os.Stderr, "[progress %d%%]\n", lastProgress)
			}
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var rolloutsCmd = &cobra.Command{
	Use:   "rollouts",
	Short: "Bulk actions on rollouts",
}

var rolloutsPauseCmd = &cobra.Command{
	Use:   "pause ID...",
	Short: "Pause rollouts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patchRollouts(args, true)
	},
}

var rolloutsResumeCmd = &cobra.Command{
	Use:   "resume ID...",
	Short: "Resume paused rollouts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patchRollouts(args, false)
	},
}

func patchRollouts(args []string, paused bool) error {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("rollout id %q: %w", a, domain.ErrInvalidInput)
		}
		ids = append(ids, id)
	}
	return mutate(http.MethodPatch, service.RolloutsEndpoint, domain.RolloutPatch{IDs: ids, Paused: paused})
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Bulk actions on devices",
}

var devicesForceUpdateCmd = &cobra.Command{
	Use:   "force-update ID...",
	Short: "Force the next update check to install",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force := true
		return mutate(http.MethodPatch, service.DevicesEndpoint, domain.DevicePatch{Devices: args, ForceUpdate: &force})
	},
}

var devicesPinCmd = &cobra.Command{
	Use:   "pin ID...",
	Short: "Pin devices to their current software",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pinned := true
		return mutate(http.MethodPatch, service.DevicesEndpoint, domain.DevicePatch{Devices: args, Pinned: &pinned})
	},
}

var devicesDeleteCmd = &cobra.Command{
	Use:   "delete ID...",
	Short: "Delete devices",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(http.MethodDelete, service.DevicesEndpoint, domain.DeviceDelete{Devices: args})
	},
}

func mutate(method, path string, body interface{}) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := cliLogger(cfg)
	ctx, stop := signalContext()
	defer stop()

	cl, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := cl.Mutate(ctx, method, path, body); err != nil {
		if detail, ok := client.DetailOf(err); ok {
			return fmt.Errorf("%s", detail)
		}
		return err
	}
	fmt.Fprintln(os.Stderr, "ok")
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "backend username")

	gridCmd.Flags().BoolVarP(&gridWatch, "watch", "w", false, "keep polling and reprint on every refresh")
	gridCmd.Flags().StringVarP(&gridSearch, "search", "s", "", "global search term")
	gridCmd.Flags().IntVar(&gridStart, "start", 0, "offset of the first row")
	gridCmd.Flags().IntVarP(&gridLength, "length", "n", 0, "rows per page")

	rolloutsCmd.AddCommand(rolloutsPauseCmd, rolloutsResumeCmd)
	devicesCmd.AddCommand(devicesForceUpdateCmd, devicesPinCmd, devicesDeleteCmd)
}
