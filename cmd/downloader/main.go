package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fulfillment-service/internal/download"
	"fulfillment-service/internal/util"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

func main() {
	server := flag.String("server", getenv("FULFILLMENT_URL", "http://localhost:8080"), "fulfillment service base URL")
	orderID := flag.String("order", "", "order id")
	outDir := flag.String("out", ".", "directory for downloaded files")
	timeout := flag.Duration("timeout", 30*time.Second, "per-request timeout")
	plain := flag.Bool("plain", false, "print progress lines instead of the interactive view")
	flag.Parse()

	if err := util.InitLogger(getenv("ENV", "production")); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer util.SyncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *server, *orderID, *outDir, *timeout, *plain); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, server, orderID, outDir string, timeout time.Duration, plain bool) error {
	client := download.NewPlanClient(server, timeout)
	plan, err := client.FetchPlan(ctx, orderID)

	var redirect *download.RedirectError
	var apiErr *download.APIError
	switch {
	case errors.As(err, &redirect):
		fmt.Printf("This order has no digital items. Order summary: %s%s\n", strings.TrimRight(server, "/"), redirect.Location)
		return nil
	case errors.As(err, &apiErr) && apiErr.Recovery != "":
		return fmt.Errorf("%s, see your orders at %s%s", apiErr.Message, strings.TrimRight(server, "/"), apiErr.Recovery)
	case err != nil:
		return err
	}

	if len(plan.Assets) == 0 {
		fmt.Println("None of the purchased files are available right now. Please contact support.")
		return nil
	}
	if plan.ResolvedCount < plan.ExpectedCount {
		util.GetLogger().Warn("Some purchased files could not be located",
			zap.String("order_id", plan.OrderID),
			zap.Int("expected", plan.ExpectedCount),
			zap.Int("resolved", plan.ResolvedCount))
	}

	saver, err := download.NewFileSaver(outDir)
	if err != nil {
		return err
	}

	opts := plan.Options()
	orch := download.NewOrchestrator(download.NewHTTPFetcher(timeout), saver, download.BrowserOpener{}, opts)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	orch.Start(runCtx)

	if plain {
		return runPlain(runCtx, orch, plan.Assets)
	}

	p := tea.NewProgram(newModel(runCtx, orch, plan.OrderID, plan.Assets, opts.CountdownTicks), tea.WithContext(runCtx))
	orch.OnEvent(func(e download.Event) {
		p.Send(eventMsg(e))
	})
	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := final.(model); ok && m.err != nil && !errors.Is(m.err, context.Canceled) {
		return m.err
	}
	return nil
}

func runPlain(ctx context.Context, orch *download.Orchestrator, assets []download.Asset) error {
	orch.OnEvent(func(e download.Event) {
		switch e.Kind {
		case download.EventCountdown:
			fmt.Printf("Your downloads start in %d...\n", e.Remaining)
		case download.EventTriggered:
			fmt.Printf("Downloading %s\n", displayTitle(e.Result.Asset.Title))
		case download.EventComplete:
			fmt.Println("Downloads Started")
		}
	})

	_, err := orch.RunBatch(ctx, assets)
	return err
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
