// Command cardmon watches the attached reader and logs every card it sees,
// refreshing the terminal's offline cache with the freshly read contents.
// Useful for checking reader wiring and card health without the full server.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	sqlitestore "github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store/sqlite"
	"github.com/creativerezz/cofk-lunch-card-app/internal/config"
	"github.com/creativerezz/cofk-lunch-card-app/internal/reader"
)

func main() {
	cfg := config.FromEnv()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	offline, err := sqlitestore.OpenOffline(cfg.OfflineDBPath)
	if err != nil {
		logger.WithError(err).Fatal("open offline db")
	}
	defer offline.Close()

	session := reader.NewSession(cardDevice(),
		reader.WithKey(cfg.CardKey()),
		reader.WithPollInterval(time.Duration(cfg.PollIntervalMs)*time.Millisecond),
	)
	if err := session.ConnectReader(); err != nil {
		logger.WithError(err).Fatal("no card reader found")
	}
	defer session.Disconnect()

	logger.Info("watching for cards, ctrl-c to stop")

	var lastUID string
	for {
		uid, err := session.WaitForCard(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, reader.ErrCardTimeout) {
				lastUID = ""
				continue
			}
			logger.WithError(err).Warn("card wait failed, rebinding")
			if err := session.ConnectReader(); err != nil {
				logger.WithError(err).Error("reader gone")
				return
			}
			continue
		}

		// The same card sitting on the reader reports once.
		if uid == lastUID {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(cfg.PollIntervalMs) * time.Millisecond):
			}
			continue
		}
		lastUID = uid

		data, err := reader.ReadCard(session)
		if err != nil {
			logger.WithError(err).WithField("card_uid", uid).Warn("card present but unreadable")
			continue
		}

		logger.WithFields(logrus.Fields{
			"card_uid": uid,
			"balance":  data.Balance.StringFixed(2),
			"identity": data.Identity,
		}).Info("card read")

		if err := offline.CacheWrite(ctx, uid, data.Balance, data.Identity); err != nil {
			logger.WithError(err).Warn("cache refresh failed")
		}
	}
}
