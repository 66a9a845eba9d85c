package network

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"mediationd/internal/coordinator"
	"mediationd/internal/mediation"
	"mediationd/internal/requestlog"
	"mediationd/pkg/types"
)

// Service exposes a Set of networks to the HTTP API. Every initialize and
// load is recorded in a request log under a fresh id.
type Service struct {
	nets  *Set
	reqs  *requestlog.Log
	base  context.Context
	start time.Time
	log   zerolog.Logger
}

// NewService serves nets. Loads are bound to base: canceling it releases
// every outstanding request.
func NewService(base context.Context, nets *Set, reqs *requestlog.Log, log zerolog.Logger) *Service {
	if base == nil {
		base = context.Background()
	}
	return &Service{nets: nets, reqs: reqs, base: base, start: time.Now(), log: log}
}

// Initialize starts SDK initialization for a network.
func (s *Service) Initialize(_ context.Context, network string, req types.InitializeRequest) (types.RequestAccepted, error) {
	n, ok := s.nets.Get(network)
	if !ok {
		return types.RequestAccepted{}, errUnknownNetwork(network)
	}
	rec := s.reqs.Start(network, req.AdUnitID, requestlog.KindInitialize)
	n.Initialize(s.base, req.AdUnitID, rec)
	s.log.Info().Str("network", network).Str("request_id", rec.ID()).Msg("initialize requested")
	return types.RequestAccepted{ID: rec.ID(), Network: network, AdUnitID: req.AdUnitID, Kind: requestlog.KindInitialize}, nil
}

// Load starts a rewarded ad load. Rejections the coordinator reports before
// returning (a request already in flight, bad parameters) are returned as
// errors; the request id stays queryable either way.
func (s *Service) Load(_ context.Context, network, adUnitID string, req types.LoadRequest) (types.RequestAccepted, error) {
	n, ok := s.nets.Get(network)
	if !ok {
		return types.RequestAccepted{}, errUnknownNetwork(network)
	}
	rec := s.reqs.Start(network, adUnitID, requestlog.KindLoad)
	accepted := types.RequestAccepted{ID: rec.ID(), Network: network, AdUnitID: adUnitID, Kind: requestlog.KindLoad}
	ad := n.Load(s.base, adUnitID, coordinator.LoadParams{
		Keywords:     req.Keywords,
		UserKeywords: req.UserKeywords,
		CustomerID:   req.CustomerID,
		Extras:       req.Extras,
	}, rec)
	if ad != nil {
		s.reqs.Attach(rec.ID(), ad)
	}
	if e, ok := s.reqs.Get(rec.ID()); ok && len(e.Records) > 0 {
		if r := e.Records[0]; r.Name == "load_failed" && r.Error != nil {
			switch r.Error.Code {
			case mediation.ErrorAdAlreadyLoaded:
				return accepted, errConflict(r.Error.Message)
			case mediation.ErrorInvalidServerParameters:
				return accepted, errBadRequest(r.Error.Message)
			}
		}
	}
	s.log.Info().Str("network", network).Str("ad_unit", adUnitID).Str("request_id", rec.ID()).Msg("load requested")
	return accepted, nil
}

// Show presents the ad loaded by request id. Only a request that still holds
// its ad unit may show; anything else would act on another request's ad.
func (s *Service) Show(id string, req types.ShowRequest) error {
	e, ok := s.reqs.Get(id)
	if !ok {
		return errRequestNotFound(id)
	}
	ad, ok := s.reqs.Ad(id)
	if !ok || !ad.Registered() {
		return errNotShowable(e.ID)
	}
	if err := ad.Show(req.CustomData); err != nil {
		var ae *mediation.AdError
		if errors.As(err, &ae) && ae.Code == mediation.ErrorAdNotReady {
			return errConflict(ae.Message)
		}
		return err
	}
	return nil
}

// Request returns the callbacks recorded for id.
func (s *Service) Request(id string) (types.RequestStatus, error) {
	e, ok := s.reqs.Get(id)
	if !ok {
		return types.RequestStatus{}, errRequestNotFound(id)
	}
	return toRequestStatus(e), nil
}

// Release withdraws interest in request id.
func (s *Service) Release(id string) error {
	if !s.reqs.Release(id) {
		return errRequestNotFound(id)
	}
	return nil
}

// NetworkStatus reports one network.
func (s *Service) NetworkStatus(network string) (types.NetworkStatus, error) {
	n, ok := s.nets.Get(network)
	if !ok {
		return types.NetworkStatus{}, errUnknownNetwork(network)
	}
	return toNetworkStatus(n), nil
}

// Status reports every network.
func (s *Service) Status() types.StatusResponse {
	out := types.StatusResponse{
		Networks:       make([]types.NetworkStatus, 0),
		Requests:       s.reqs.Len(),
		UptimeSeconds:  int64(time.Since(s.start).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	for _, name := range s.nets.Names() {
		n, _ := s.nets.Get(name)
		out.Networks = append(out.Networks, toNetworkStatus(n))
	}
	return out
}

// Ready reports false while any network is initializing.
func (s *Service) Ready() bool {
	for _, name := range s.nets.Names() {
		n, _ := s.nets.Get(name)
		if n.Adapter().State() == coordinator.StateInitializing {
			return false
		}
	}
	return true
}

// Sweep expires old requests and reclaims dead registry entries.
func (s *Service) Sweep() (requests, entries int) {
	requests = s.reqs.Expire()
	for _, name := range s.nets.Names() {
		n, _ := s.nets.Get(name)
		entries += n.Adapter().Sweep()
	}
	if requests > 0 || entries > 0 {
		s.log.Debug().Int("requests", requests).Int("entries", entries).Msg("sweep")
	}
	return requests, entries
}

// RunJanitor calls Sweep every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

func toNetworkStatus(n *Network) types.NetworkStatus {
	snap := n.Snapshot()
	units := snap.AdUnits
	if units == nil {
		units = []string{}
	}
	return types.NetworkStatus{
		Name:         n.Name(),
		State:        string(snap.State),
		PendingInits: snap.PendingInits,
		InitAttempts: snap.InitAttempts,
		Reinits:      snap.Reinits,
		LastError:    snap.LastError,
		AdUnits:      units,
		Entries:      snap.Entries,
		QueuedTasks:  snap.QueuedTasks,
		Settings:     n.Settings(),
	}
}

func toRequestStatus(e requestlog.Entry) types.RequestStatus {
	out := types.RequestStatus{
		RequestAccepted: types.RequestAccepted{ID: e.ID, Network: e.Network, AdUnitID: e.AdUnitID, Kind: e.Kind},
		CreatedUnix:     e.Created.Unix(),
		Released:        e.Released,
		Events:          make([]types.EventRecord, 0, len(e.Records)),
	}
	for _, r := range e.Records {
		ev := types.EventRecord{Name: r.Name, AtUnixMs: r.At.UnixMilli()}
		if r.Error != nil {
			ev.Error = &types.AdError{Code: r.Error.Code, Message: r.Error.Message, Domain: r.Error.Domain}
		}
		if r.Reward != nil {
			ev.Reward = &types.Reward{Type: r.Reward.Type, Amount: r.Reward.Amount}
		}
		out.Events = append(out.Events, ev)
	}
	return out
}
