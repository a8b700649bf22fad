package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/runtrace/runtrace/internal/config"
	"github.com/runtrace/runtrace/internal/export"
	"github.com/runtrace/runtrace/internal/feed"
	"github.com/runtrace/runtrace/internal/filter"
	"github.com/runtrace/runtrace/internal/frontend"
	"github.com/runtrace/runtrace/internal/geo"
	"github.com/runtrace/runtrace/internal/records"
	"github.com/runtrace/runtrace/internal/render"
	"github.com/runtrace/runtrace/internal/tracker"
	"github.com/runtrace/runtrace/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	feedKind := flag.String("feed", "", "Override feed kind (simulator, replay, tail, push)")
	gpxPath := flag.String("gpx", "", "GPX file to replay (implies -feed replay)")
	genToken := flag.Bool("gen-token", false, "Print a random auth token and exit")
	flag.Parse()

	if *genToken {
		token, err := config.GenerateToken()
		if err != nil {
			log.Fatalf("Failed to generate token: %v", err)
		}
		fmt.Println(token)
		return
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *gpxPath != "" {
		cfg.Feed.Kind = config.FeedReplay
		cfg.Feed.Replay.Path = *gpxPath
	}
	if *feedKind != "" {
		cfg.Feed.Kind = *feedKind
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	src, push, err := newFeed(cfg.Feed)
	if err != nil {
		log.Fatalf("Failed to set up %s feed: %v", cfg.Feed.Kind, err)
	}

	tr := tracker.New(tracker.Config{
		Filter: filter.Config{
			MaxAccuracyM: cfg.Tracker.MaxAccuracyM,
			MinStepM:     cfg.Tracker.MinStepM,
		},
		TickInterval:    cfg.Tracker.TickInterval,
		HealthThreshold: cfg.Tracker.HealthThreshold,
	}, src, nil)

	broadcaster := ws.NewBroadcaster(tr, cfg.Broadcast.Throttle, cfg.Broadcast.SnapshotInterval, cfg.Server.MaxConnections)
	tr.SetPublisher(broadcaster)

	privacy := cfg.Privacy.NewPrivacyFilter()

	book, err := records.NewBook(records.NewStore(cfg.Export.RecordsDir))
	if err != nil {
		log.Printf("Records unavailable: %v", err)
		book = nil
	}
	if book != nil {
		book.OnAchievement(broadcaster.QueueAchievement)
	}

	var archive *export.Archive
	if cfg.Export.Archive {
		archive = export.NewArchive(cfg.Export.ArchiveDir)
		archive.SetPrivacy(*privacy)
		log.Printf("Archiving runs to %s", archive.Dir())
	}

	var archivers tracker.Archivers
	if archive != nil {
		archivers = append(archivers, archive)
	}
	if book != nil {
		archivers = append(archivers, book)
	}
	if len(archivers) > 0 {
		tr.SetArchiver(archivers)
	}

	server := ws.NewServer(tr, broadcaster, cfg.Server.AllowedOrigins, cfg.Server.AuthToken)
	server.SetPrivacy(privacy)
	if archive != nil {
		server.SetArchive(archive)
	}
	if book != nil {
		server.SetRecords(book)
	}
	if push != nil {
		server.SetPush(push)
	}
	route := render.DefaultOptions()
	route.Width = cfg.Export.RouteWidth
	route.Height = cfg.Export.RouteHeight
	server.SetRouteOptions(route)
	server.SetFrontend(frontend.Handler())

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		tr.Close()
		if push != nil {
			push.Close()
		}
		broadcaster.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Tracking with %s feed", tr.FeedName())
	if err := ws.ListenAndServe(srv); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// newFeed builds the configured feed. push is non-nil only for the push
// feed, which the server needs for POST /api/fixes.
func newFeed(cfg config.FeedConfig) (feed.Feed, *feed.Push, error) {
	switch cfg.Kind {
	case config.FeedSimulator:
		sc := cfg.Simulator
		sim, err := feed.NewSimulator(feed.SimulatorConfig{
			Origin:           geo.LatLon{Lat: sc.OriginLat, Lon: sc.OriginLon},
			LoopRadiusM:      sc.LoopRadiusM,
			SpeedMPS:         sc.SpeedMPS,
			Interval:         sc.Interval,
			JitterM:          sc.JitterM,
			Pattern:          sc.Pattern,
			LowAccuracyEvery: sc.LowAccuracyEvery,
			ErrorEvery:       sc.ErrorEvery,
			Seed:             sc.Seed,
		})
		if err != nil {
			return nil, nil, err
		}
		return sim, nil, nil
	case config.FeedReplay:
		return feed.NewReplay(feed.ReplayConfig{
			Path:  cfg.Replay.Path,
			Speed: cfg.Replay.Speed,
			Loop:  cfg.Replay.Loop,
		}), nil, nil
	case config.FeedTail:
		return feed.NewTail(feed.TailConfig{
			Path:         cfg.Tail.Path,
			PollInterval: cfg.Tail.PollInterval,
			FromStart:    cfg.Tail.FromStart,
		}), nil, nil
	case config.FeedPush:
		p := feed.NewPush()
		return p, p, nil
	default:
		return nil, nil, fmt.Errorf("unknown feed kind %q", cfg.Kind)
	}
}
