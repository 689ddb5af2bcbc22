package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/store"
	"github.com/creativerezz/cofk-lunch-card-app/internal/cafeteria/types"
	"github.com/creativerezz/cofk-lunch-card-app/internal/reader"
)

// Scan waits for a card and assembles the terminal's view of it. The ledger
// balance is authoritative in the response; the physical read (or, failing
// that, the offline cache) only refreshes the terminal-local mirror.
func (p *Processor) Scan(ctx context.Context, timeout time.Duration) (types.ScanResult, error) {
	if p.card == nil {
		return types.ScanResult{}, ErrNoReader
	}
	if err := p.card.ConnectReader(); err != nil {
		return types.ScanResult{}, err
	}

	uid, err := p.card.WaitForCard(ctx, timeout)
	if err != nil {
		return types.ScanResult{}, err
	}

	card, err := p.ledger.GetCardByUID(ctx, uid)
	if err == store.ErrCardNotFound {
		p.log.WithField("card_uid", uid).Info("unregistered card scanned")
		return types.ScanResult{CardUID: uid, Registered: false}, nil
	}
	if err != nil {
		return types.ScanResult{}, err
	}

	res := types.ScanResult{
		CardUID:    uid,
		Registered: true,
		Balance:    &card.Balance,
		Status:     card.Status,
	}
	if student, serr := p.students.GetByID(ctx, card.StudentID); serr == nil {
		res.Student = &student
	}

	data, readErr := reader.ReadCard(p.card)
	if readErr == nil {
		if err := p.offline.CacheWrite(ctx, uid, data.Balance, data.Identity); err != nil {
			p.log.WithError(err).WithField("card_uid", uid).Warn("cache refresh failed")
		}
	} else {
		p.log.WithError(readErr).WithField("card_uid", uid).Warn("physical read failed")
		if _, ok, cerr := p.offline.CacheRead(ctx, uid); cerr == nil && ok {
			res.FromCache = true
		}
	}

	p.log.WithFields(logrus.Fields{
		"card_uid":   uid,
		"balance":    card.Balance.StringFixed(2),
		"from_cache": res.FromCache,
	}).Info("card scanned")
	return res, nil
}
