package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"fknsrs.biz/p/sorm"
	bxhttpcache "github.com/bxcodec/httpcache"
	"github.com/gorilla/mux"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/tdewolff/minify"
	"github.com/tdewolff/minify/html"
	"github.com/tdewolff/minify/xml"
	"github.com/urfave/negroni/v2"
	"go.etcd.io/bbolt"

	"fknsrs.biz/p/ytfeed/handlers"
	"fknsrs.biz/p/ytfeed/internal/bboltstorage"
	"fknsrs.biz/p/ytfeed/internal/config"
	"fknsrs.biz/p/ytfeed/internal/configreader"
	"fknsrs.biz/p/ytfeed/internal/ctxclock"
	"fknsrs.biz/p/ytfeed/internal/ctxconfig"
	"fknsrs.biz/p/ytfeed/internal/ctxdb"
	"fknsrs.biz/p/ytfeed/internal/ctxhttpclient"
	"fknsrs.biz/p/ytfeed/internal/ctxjobqueue"
	"fknsrs.biz/p/ytfeed/internal/ctxlogger"
	"fknsrs.biz/p/ytfeed/internal/ctxresolver"
	"fknsrs.biz/p/ytfeed/internal/ctxtimer"
	"fknsrs.biz/p/ytfeed/internal/httpcache"
	"fknsrs.biz/p/ytfeed/internal/jobqueue"
	"fknsrs.biz/p/ytfeed/internal/logrusstackhook"
	"fknsrs.biz/p/ytfeed/internal/notify"
	"fknsrs.biz/p/ytfeed/internal/projector"
	"fknsrs.biz/p/ytfeed/internal/queuenames"
	"fknsrs.biz/p/ytfeed/internal/rss"
	"fknsrs.biz/p/ytfeed/internal/sqlitelogger"
	"fknsrs.biz/p/ytfeed/internal/store"
	"fknsrs.biz/p/ytfeed/internal/syncer"
	"fknsrs.biz/p/ytfeed/internal/ytapi"
	"fknsrs.biz/p/ytfeed/internal/ytscrape"
	"fknsrs.biz/p/ytfeed/internal/ytutil"
)

func init() {
	sorm.SetParameterPrefix("?")
}

var cfg = config.Config{
	LogLevel:             logrus.InfoLevel,
	LogDebugLevels:       config.LevelList{logrus.DebugLevel, logrus.TraceLevel},
	LogQueries:           config.LogQueries{Enabled: true, SlowerThan: time.Millisecond * 100},
	LogSORM:              false,
	ApplicationAddr:      ":8080",
	ApplicationDatabase:  "database.db",
	ApplicationCachePath: "cache.db",
	ApplicationMinify:    true,
	FeedDirectory:        "feeds",
	SyncInterval:         config.Duration(time.Hour),
	BackgroundWorkers:    1,
}

func init() {
	for _, configPath := range []string{"config.toml", "config.yaml", "config.yml"} {
		if st, err := os.Stat(configPath); err == nil && st != nil && !st.IsDir() {
			cfg.Config = configPath
		}
	}
}

type simpleQueryLogger struct {
	logger *logrus.Logger
}

func (s *simpleQueryLogger) LogQuery(query string, args []interface{}) {
	fields := logrus.Fields{
		"db.query":      query,
		"db.args.count": len(args),
	}

	for i, e := range args {
		fields[fmt.Sprintf("db.args.%d", i)] = e
	}

	s.logger.WithFields(fields).Info("sorm query start")
}

func (s *simpleQueryLogger) LogQueryAfter(query string, args []interface{}, duration time.Duration, err error) {
	fields := logrus.Fields{
		"db.query":      query,
		"db.duration":   duration,
		"db.error":      err,
		"db.args.count": len(args),
	}

	for i, e := range args {
		fields[fmt.Sprintf("db.args.%d", i)] = e
	}

	s.logger.WithFields(fields).Info("sorm query finish")
}

// scrapeResolver resolves channels by fetching and parsing youtube.com pages.
type scrapeResolver struct{}

func (scrapeResolver) ResolveChannel(ctx context.Context, urlOrID string) (*ctxresolver.Channel, error) {
	ch, err := ytscrape.ResolveChannel(ctx, urlOrID)
	if err != nil {
		return nil, err
	}

	return &ctxresolver.Channel{ID: ch.ID, Title: ch.Title, Description: ch.Description}, nil
}

// apiResolver uses the data API for plain channel IDs, and falls back to
// scraping for handles and anything else the API can't look up directly.
type apiResolver struct {
	client *ytapi.Client
}

func (a apiResolver) ResolveChannel(ctx context.Context, urlOrID string) (*ctxresolver.Channel, error) {
	if idType, value, err := ytutil.ExtractAndIdentifyID(urlOrID); err == nil && idType == ytutil.ChannelID {
		ch, err := a.client.ResolveChannel(ctx, value)
		if err != nil {
			return nil, err
		}

		return &ctxresolver.Channel{ID: ch.ID, Title: ch.Title, Description: ch.Description}, nil
	}

	return scrapeResolver{}.ResolveChannel(ctx, urlOrID)
}

func main() {
	ctx := context.Background()

	if err := configreader.Read(os.Args[0], os.Args[1:], os.Environ(), &cfg); err != nil {
		panic(err)
	}

	ctx = ctxconfig.WithConfig(ctx, cfg)

	ctx = ctxclock.WithClock(ctx, ctxclock.NewRealClock())

	logger := logrus.New()

	logger.SetLevel(cfg.LogLevel)
	if len(cfg.LogDebugLevels) > 0 {
		logger.AddHook(logrusstackhook.NewStackHook(nil, cfg.LogDebugLevels, nil))
	}

	logger.WithFields(logrus.Fields{
		"config.config":                 cfg.Config,
		"config.log_level":              cfg.LogLevel,
		"config.log_debug_levels":       cfg.LogDebugLevels,
		"config.log_queries":            cfg.LogQueries,
		"config.log_sorm":               cfg.LogSORM,
		"config.application_addr":       cfg.ApplicationAddr,
		"config.application_cache_path": cfg.ApplicationCachePath,
		"config.application_database":   cfg.ApplicationDatabase,
		"config.application_minify":     cfg.ApplicationMinify,
		"config.feed_directory":         cfg.FeedDirectory,
		"config.youtube_api_key_set":    cfg.YouTubeAPIKey != "",
		"config.webhook_url_set":        cfg.WebhookURL != "",
		"config.default_owner":          cfg.DefaultOwner,
		"config.sync_interval":          time.Duration(cfg.SyncInterval),
		"config.retention_days":         cfg.RetentionDays,
		"config.background_workers":     cfg.BackgroundWorkers,
	}).Info("program starting")

	if cfg.LogSORM {
		sorm.SetQueryLogger(&simpleQueryLogger{logger})
	}

	ctx = ctxlogger.WithLogger(ctx, logger)

	dbDriver := "sqlite3"

	if !cfg.LogQueries.IsZero() {
		dbDriver = "sqlite3:logged"

		sql.Register(dbDriver, sqlitelogger.New(
			dbDriver,
			&sqlite3.SQLiteDriver{},
			&sqlitelogger.BasicFilter{
				LogSlowerThan: cfg.LogQueries.SlowerThan,
				IgnorePackageStackFrames: []string{
					// standard library
					"database/sql",
					"net/http",
					"runtime",
					// libraries
					"github.com/gorilla/mux",
					"github.com/shogo82148/go-sql-proxy",
					"github.com/urfave/negroni/v2",
					// middleware
					"fknsrs.biz/p/ytfeed/internal/ctxclock",
					"fknsrs.biz/p/ytfeed/internal/ctxdb",
					"fknsrs.biz/p/ytfeed/internal/ctxjobqueue",
					"fknsrs.biz/p/ytfeed/internal/ctxlogger",
					"fknsrs.biz/p/ytfeed/internal/ctxtimer",
					"fknsrs.biz/p/ytfeed/internal/sqlitelogger",
					// main
					"main",
				},
				IgnoreFunctionQueries: []string{
					"fknsrs.biz/p/ytfeed/internal/jobqueue.(*Worker).Run",
				},
			},
		))
	}

	db, err := sql.Open(dbDriver, cfg.ApplicationDatabase)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	if err := store.Migrate(ctx, db); err != nil {
		panic(err)
	}

	ctx = ctxdb.WithDB(ctx, db)

	cacheDB, err := bbolt.Open(cfg.ApplicationCachePath, 0600, nil)
	if err != nil {
		panic(err)
	}
	defer cacheDB.Close()

	ctx = ctxhttpclient.WithHTTPClient(ctx, &http.Client{
		Transport: httpcache.NewTransport(nil, httpcache.NewBBoltStorage(cacheDB), 0),
	})

	// page scraping gets its own client with a more aggressive cache, since
	// youtube.com pages don't send useful cache headers
	scrapeClient := &http.Client{}
	if _, err := bxhttpcache.NewWithCustomStorageCache(scrapeClient, false, bboltstorage.New(cacheDB)); err != nil {
		panic(err)
	}

	var resolver ctxresolver.Resolver = scrapeResolver{}
	var adapter syncer.Adapter
	if cfg.YouTubeAPIKey != "" {
		client := ytapi.New(cfg.YouTubeAPIKey)
		resolver = apiResolver{client: client}
		adapter = client
	} else {
		logger.Warn("no youtube api key configured; channels can be added but not synced")
	}

	reporter := notify.NewReporter(cfg.WebhookURL)

	ctx = ctxjobqueue.WithWorker(ctx, jobqueue.NewWorker(nil))

	if err := registerJobQueueWorkerFunctions(ctx, adapter, reporter); err != nil {
		panic(err)
	}

	workers := []worker{
		{
			name: "application",
			run: func(ctx context.Context) error {
				return runApplicationWorker(ctx, cfg.ApplicationAddr, scrapeClient, resolver)
			},
		},
	}

	for i := 0; i < cfg.BackgroundWorkers; i++ {
		workers = append(workers, worker{
			name: fmt.Sprintf("job_queue.%d", i),
			run: func(ctx context.Context) error {
				return runJobQueueWorker(ctx)
			},
		})
	}

	if d := time.Duration(cfg.SyncInterval); d > 0 {
		workers = append(workers, worker{
			name: "scheduler",
			run: func(ctx context.Context) error {
				return runSchedulerWorker(ctx, d)
			},
		})
	}

	if err := runAllWorkers(ctx, workers); err != nil {
		panic(err)
	}
}

type worker struct {
	name string
	run  func(ctx context.Context) error
}

func runAllWorkers(ctx context.Context, workers []worker) error {
	done := make(chan error, len(workers))
	cancellers := make([]context.CancelCauseFunc, len(workers))

	var rw sync.RWMutex

	for id, w := range workers {
		go func(id int, w worker) {
			for {
				l := ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
					"worker.id":   id + 1,
					"worker.name": w.name,
				})

				ctx, cancel := context.WithCancelCause(ctxlogger.WithLogger(ctx, l))

				rw.Lock()
				cancellers[id] = cancel
				rw.Unlock()

				if err := w.run(ctx); err != nil {
					l.WithError(err).Error("worker failed")

					rw.RLock()
					for _, fn := range cancellers {
						if fn == nil {
							continue
						}

						fn(fmt.Errorf("worker %d (%s) failed: %w", id+1, w.name, err))
					}
					rw.RUnlock()
				} else {
					l.Info("worker restarted")
				}

				time.Sleep(time.Second)
			}
		}(id, w)
	}

	var errs []error
	for err := range done {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func runApplicationWorker(ctx context.Context, addr string, scrapeClient *http.Client, resolver ctxresolver.Resolver) error {
	l := ctxlogger.GetLogger(ctx)

	l.WithFields(logrus.Fields{
		"args.addr": addr,
	}).Info("running application worker")

	m := mux.NewRouter()

	m.Methods(http.MethodPost).Path("/add").HandlerFunc(handlers.AddAction)
	m.Methods(http.MethodGet).Path("/channels").HandlerFunc(handlers.Channels)
	m.Methods(http.MethodGet).Path("/channels/{id}").HandlerFunc(handlers.Channel)
	m.Methods(http.MethodGet).Path("/channels/{id}/videos").HandlerFunc(handlers.ChannelVideos)
	m.Methods(http.MethodGet).Path("/channels/{id}/feed.xml").HandlerFunc(handlers.ChannelFeed)
	m.Methods(http.MethodPost).Path("/channels/{id}/sync").HandlerFunc(handlers.ChannelSyncAction)
	m.Methods(http.MethodPost).Path("/channels/{id}/remove").HandlerFunc(handlers.ChannelRemoveAction)
	m.Methods(http.MethodGet).Path("/videos").HandlerFunc(handlers.Videos)
	m.Methods(http.MethodPost).Path("/videos/cleanup").HandlerFunc(handlers.VideosCleanupAction)
	m.Methods(http.MethodGet).Path("/jobs").HandlerFunc(handlers.Jobs)
	m.Methods(http.MethodGet).Path("/stats").HandlerFunc(handlers.Stats)

	m.Methods(http.MethodGet).PathPrefix("/feeds/").Handler(http.StripPrefix("/feeds/", http.FileServer(http.Dir(ctxconfig.GetConfig(ctx).FeedDirectory))))

	min := minify.New()
	min.Add("text/html", html.DefaultMinifier)
	min.Add("application/rss+xml", xml.DefaultMinifier)

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.UseFunc(ctxlogger.Register(l))
	n.UseFunc(ctxtimer.Register(nil))
	n.UseFunc(ctxclock.Register(ctxclock.GetClock(ctx)))
	n.UseFunc(ctxdb.Register(ctxdb.GetDB(ctx)))
	n.UseFunc(ctxjobqueue.Register(ctxjobqueue.GetWorker(ctx)))
	n.UseFunc(ctxhttpclient.Register(scrapeClient))
	n.UseFunc(ctxresolver.Register(resolver))
	n.UseFunc(ctxtimer.AddLoggerHooks())
	n.UseFunc(ctxclock.AddLoggerHooks())
	n.UseFunc(ctxlogger.Log())

	if cfg.ApplicationMinify {
		n.UseFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
			if strings.ToLower(r.Header.Get("connection")) != "upgrade" {
				mw := min.ResponseWriter(rw, r)
				defer mw.Close()
				rw = mw
			}

			next(rw, r)
		})
	}

	n.UseHandler(m)

	s := &http.Server{
		Addr:        addr,
		Handler:     n,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		l.Info("starting server")
		errs <- s.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return s.Shutdown(ctx)
	}
}

func runSchedulerWorker(ctx context.Context, interval time.Duration) error {
	l := ctxlogger.GetLogger(ctx)

	l.WithFields(logrus.Fields{
		"args.interval": interval,
	}).Info("running scheduler worker")

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
				if err := ctxjobqueue.Add(ctx, tx, &jobqueue.Job{
					QueueName: queuenames.SyncAllChannels,
					Payload:   "all",
				}); err != nil {
					return err
				}

				if ctxconfig.GetConfig(ctx).RetentionDays > 0 {
					if err := ctxjobqueue.Add(ctx, tx, &jobqueue.Job{
						QueueName: queuenames.VideosCleanup,
						Payload:   "all",
					}); err != nil {
						return err
					}
				}

				return nil
			}); err != nil {
				l.WithError(err).Error("could not enqueue scheduled jobs")
			}
		}
	}
}

func registerJobQueueWorkerFunctions(ctx context.Context, adapter syncer.Adapter, reporter *notify.Reporter) error {
	l := ctxlogger.GetLogger(ctx)

	l.WithFields(logrus.Fields{}).Info("registering job queue worker functions")

	w := ctxjobqueue.GetWorker(ctx)
	if w == nil {
		return fmt.Errorf("job queue worker not available in context")
	}

	return w.RegisterAll(map[string]jobqueue.WorkerFunction{
		queuenames.ChannelSync: func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
			externalID, _, err := jobqueue.ParsePayload(j.Payload)
			if err != nil {
				return "", err
			}

			if adapter == nil {
				return "", fmt.Errorf("no youtube api key configured; can not sync")
			}

			now, err := ctxclock.Now(ctx)
			if err != nil {
				return "", err
			}

			result, err := syncer.Sync(ctx, externalID, adapter)
			if err != nil {
				reporter.Report(ctx, &notify.SyncReport{
					Action:    "sync_failed",
					ChannelID: externalID,
					Timestamp: now,
					Error:     err.Error(),
				})

				return "", err
			}

			channel, err := store.GetChannel(ctx, ctxdb.GetDB(ctx), externalID)
			if err != nil {
				return "", err
			}

			if err := writeChannelFeed(ctx, externalID); err != nil {
				return "", err
			}

			reporter.Report(ctx, &notify.SyncReport{
				Action:        "sync",
				ChannelID:     externalID,
				ChannelTitle:  channel.Title,
				OwnerID:       channel.OwnerID,
				VideosAdded:   result.VideosAdded,
				VideosUpdated: result.VideosUpdated,
				Timestamp:     now,
			})

			return fmt.Sprintf("strategy=%s added=%d updated=%d", result.Strategy, result.VideosAdded, result.VideosUpdated), nil
		},
		queuenames.SyncAllChannels: func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
			channels, err := store.ListChannels(ctx, ctxdb.GetDB(ctx), "")
			if err != nil {
				return "", err
			}

			if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
				for _, channel := range channels {
					if err := ctxjobqueue.Add(ctx, tx, &jobqueue.Job{
						QueueName: queuenames.ChannelSync,
						Payload:   channel.ExternalID,
					}); err != nil {
						return err
					}
				}

				return nil
			}); err != nil {
				return "", err
			}

			return fmt.Sprintf("queued=%d", len(channels)), nil
		},
		queuenames.VideosCleanup: func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
			retentionDays := ctxconfig.GetConfig(ctx).RetentionDays
			if retentionDays <= 0 {
				return "retention disabled", nil
			}

			now, err := ctxclock.Now(ctx)
			if err != nil {
				return "", err
			}

			cutoff := now.UTC().AddDate(0, 0, -retentionDays)

			var removed int
			if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
				n, err := store.DeleteVideosOlderThan(ctx, tx, cutoff)
				if err != nil {
					return err
				}

				removed = n

				return nil
			}); err != nil {
				return "", err
			}

			if removed > 0 {
				reporter.Report(ctx, &notify.SyncReport{
					Action:        "cleanup",
					VideosRemoved: removed,
					Timestamp:     now,
				})
			}

			return fmt.Sprintf("removed=%d", removed), nil
		},
	})
}

func writeChannelFeed(ctx context.Context, externalID string) error {
	view, err := projector.Project(ctx, ctxdb.GetDB(ctx), externalID, 0)
	if err != nil {
		return fmt.Errorf("writeChannelFeed: %w", err)
	}

	now, err := ctxclock.Now(ctx)
	if err != nil {
		return fmt.Errorf("writeChannelFeed: %w", err)
	}

	data, err := rss.Render(view, now)
	if err != nil {
		return fmt.Errorf("writeChannelFeed: %w", err)
	}

	if err := rss.WriteFile(ctxconfig.FeedFile(ctx, externalID+".xml"), data); err != nil {
		return fmt.Errorf("writeChannelFeed: %w", err)
	}

	return nil
}

func runJobQueueWorker(ctx context.Context) error {
	l := ctxlogger.GetLogger(ctx)

	l.WithFields(logrus.Fields{}).Info("running job queue worker")

	w := ctxjobqueue.GetWorker(ctx)
	if w == nil {
		return fmt.Errorf("job queue worker not available in context")
	}

	return w.Run(ctx)
}
