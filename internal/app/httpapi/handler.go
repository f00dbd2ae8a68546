// Package httpapi exposes the REST API over the application services.
package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	app "github.com/sudoku-arena/arena-api/internal/app"
	"github.com/sudoku-arena/arena-api/internal/app/domain/game"
	"github.com/sudoku-arena/arena-api/internal/app/metrics"
	"github.com/sudoku-arena/arena-api/internal/app/queue"
	"github.com/sudoku-arena/arena-api/internal/app/services/auth"
	"github.com/sudoku-arena/arena-api/internal/app/services/games"
	"github.com/sudoku-arena/arena-api/internal/app/services/sudokus"
	"github.com/sudoku-arena/arena-api/internal/app/storage"
	"github.com/sudoku-arena/arena-api/internal/middleware"
)

// maxDetectImageBytes caps uploaded puzzle photos.
const maxDetectImageBytes = 8 << 20

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the REST API, the WebSocket status
// stream and the operational endpoints.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	r := mux.NewRouter()

	authRouter := r.PathPrefix("/api/auth").Subrouter()
	authRouter.HandleFunc("/register", h.register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", h.login).Methods(http.MethodPost)
	authRouter.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	authRouter.HandleFunc("/google", h.googleLogin).Methods(http.MethodPost)
	authRouter.HandleFunc("/token/refresh", h.refreshToken).Methods(http.MethodPost)
	authRouter.HandleFunc("/token/verify", h.verifyToken).Methods(http.MethodPost)
	authRouter.HandleFunc("/user", h.me).Methods(http.MethodGet)

	usersRouter := r.PathPrefix("/api/users").Subrouter()
	usersRouter.HandleFunc("/me", h.me).Methods(http.MethodGet)
	usersRouter.HandleFunc("/me", h.updateMe).Methods(http.MethodPatch, http.MethodPut)
	usersRouter.HandleFunc("/me/with-stats", h.meWithStats).Methods(http.MethodGet)
	usersRouter.HandleFunc("/stats/overview", h.statsOverview).Methods(http.MethodGet)
	usersRouter.HandleFunc("/stats/record_game", h.recordGame).Methods(http.MethodPost)
	usersRouter.HandleFunc("/stats/daily", h.statsDaily).Methods(http.MethodGet)
	usersRouter.HandleFunc("/stats/weekly", h.statsWeekly).Methods(http.MethodGet)
	usersRouter.HandleFunc("/stats/monthly", h.statsMonthly).Methods(http.MethodGet)
	usersRouter.HandleFunc("/stats/today", h.statsToday).Methods(http.MethodGet)
	usersRouter.HandleFunc("/leaderboard", h.leaderboard).Methods(http.MethodGet)

	gamesRouter := r.PathPrefix("/api/games").Subrouter()
	gamesRouter.HandleFunc("", h.listGames).Methods(http.MethodGet)
	gamesRouter.HandleFunc("", h.createGame).Methods(http.MethodPost)
	gamesRouter.HandleFunc("/recent", h.recentGames).Methods(http.MethodGet)
	gamesRouter.HandleFunc("/best_scores", h.bestScores).Methods(http.MethodGet)
	gamesRouter.HandleFunc("/best_times", h.bestTimes).Methods(http.MethodGet)
	gamesRouter.HandleFunc("/bulk_delete", h.bulkDeleteGames).Methods(http.MethodDelete)
	gamesRouter.HandleFunc("/{id}", h.getGame).Methods(http.MethodGet)
	gamesRouter.HandleFunc("/{id}", h.updateGame).Methods(http.MethodPut, http.MethodPatch)
	gamesRouter.HandleFunc("/{id}", h.deleteGame).Methods(http.MethodDelete)
	gamesRouter.HandleFunc("/{id}/complete", h.completeGame).Methods(http.MethodPost)
	gamesRouter.HandleFunc("/{id}/abandon", h.abandonGame).Methods(http.MethodPost)
	gamesRouter.HandleFunc("/{id}/stop", h.stopGame).Methods(http.MethodPost)

	sudokusRouter := r.PathPrefix("/api/sudokus").Subrouter()
	sudokusRouter.HandleFunc("", h.listSudokus).Methods(http.MethodGet)
	sudokusRouter.HandleFunc("", h.createSudoku).Methods(http.MethodPost)
	sudokusRouter.HandleFunc("/detect", h.detectSudoku).Methods(http.MethodPost)
	sudokusRouter.HandleFunc("/{id}", h.getSudoku).Methods(http.MethodGet)
	sudokusRouter.HandleFunc("/{id}", h.updateSudoku).Methods(http.MethodPut, http.MethodPatch)
	sudokusRouter.HandleFunc("/{id}", h.deleteSudoku).Methods(http.MethodDelete)
	sudokusRouter.HandleFunc("/{id}/solver", h.requestSolve).Methods(http.MethodPost)
	sudokusRouter.HandleFunc("/{id}/solver", h.abortSolve).Methods(http.MethodDelete)
	sudokusRouter.HandleFunc("/{id}/solution", h.getSolution).Methods(http.MethodGet)
	sudokusRouter.HandleFunc("/{id}/solution", h.deleteSolution).Methods(http.MethodDelete)
	sudokusRouter.HandleFunc("/{id}/status", h.sudokuStatus).Methods(http.MethodGet)

	r.HandleFunc("/ws/sudokus/{id}/status", h.statusStream).Methods(http.MethodGet)

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return r
}

// ---- auth ----------------------------------------------------------------

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, pair, err := h.app.Auth.Register(r.Context(), payload.Email, payload.Password, payload.Username)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":    u,
		"access":  pair.Access,
		"refresh": pair.Refresh,
	})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, pair, err := h.app.Auth.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    u,
		"access":  pair.Access,
		"refresh": pair.Refresh,
	})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Auth.Logout(r.Context(), payload.Refresh); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) googleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code        string `json:"code"`
		AccessToken string `json:"access_token"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, pair, err := h.app.Auth.GoogleLogin(r.Context(), payload.Code, payload.AccessToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    u,
		"access":  pair.Access,
		"refresh": pair.Refresh,
	})
}

func (h *handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	pair, err := h.app.Auth.Refresh(r.Context(), payload.Refresh)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Access: pair.Access, Refresh: pair.Refresh})
}

func (h *handler) verifyToken(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Auth.Verify(r.Context(), payload.Token); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "valid"})
}

// ---- users and stats -----------------------------------------------------

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	u, err := h.app.Users.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username *string `json:"username"`
		Password *string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	userID := middleware.GetUserID(r.Context())
	u, err := h.app.Users.Update(r.Context(), userID, payload.Username, payload.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) meWithStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	u, err := h.app.Users.Get(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	st, err := h.app.Stats.Get(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	daily, err := h.app.Stats.Daily(ctx, userID, time.Time{}, time.Time{})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":  u,
		"stats": st,
		"daily": daily,
	})
}

func (h *handler) statsOverview(w http.ResponseWriter, r *http.Request) {
	st, err := h.app.Stats.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) recordGame(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Won         bool  `json:"won"`
		TimeSeconds int64 `json:"time_seconds"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if err := h.app.Stats.RecordGame(ctx, userID, payload.Won, time.Duration(payload.TimeSeconds)*time.Second); err != nil {
		writeServiceError(w, err)
		return
	}
	st, err := h.app.Stats.Get(ctx, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) statsDaily(w http.ResponseWriter, r *http.Request) {
	from, err := parseDate(r.URL.Query().Get("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseDate(r.URL.Query().Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	daily, err := h.app.Stats.Daily(r.Context(), middleware.GetUserID(r.Context()), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, daily)
}

func (h *handler) statsWeekly(w http.ResponseWriter, r *http.Request) {
	weeks := queryInt(r, "weeks", 0)
	periods, err := h.app.Stats.Weekly(r.Context(), middleware.GetUserID(r.Context()), weeks)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, periods)
}

func (h *handler) statsMonthly(w http.ResponseWriter, r *http.Request) {
	months := queryInt(r, "months", 0)
	periods, err := h.app.Stats.Monthly(r.Context(), middleware.GetUserID(r.Context()), months)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, periods)
}

func (h *handler) statsToday(w http.ResponseWriter, r *http.Request) {
	today, err := h.app.Stats.Today(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, today)
}

func (h *handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.app.Stats.Leaderboard(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ---- games ---------------------------------------------------------------

type gamePayload struct {
	SudokuID       *string      `json:"sudoku_id"`
	HintsUsed      *int         `json:"hints_used"`
	ChecksUsed     *int         `json:"checks_used"`
	Deletions      *int         `json:"deletions"`
	TimeSeconds    *int64       `json:"time_taken_seconds"`
	Won            *bool        `json:"won"`
	Status         *game.Status `json:"status"`
	OriginalPuzzle *string      `json:"original_puzzle"`
	Solution       *string      `json:"solution"`
	FinalState     *string      `json:"final_state"`
}

func (p gamePayload) updateInput() (games.UpdateInput, error) {
	in := games.UpdateInput{
		HintsUsed:  p.HintsUsed,
		ChecksUsed: p.ChecksUsed,
		Deletions:  p.Deletions,
		Won:        p.Won,
		FinalState: p.FinalState,
		Solution:   p.Solution,
	}
	if p.TimeSeconds != nil {
		d := time.Duration(*p.TimeSeconds) * time.Second
		in.TimeTaken = &d
	}
	if p.Status != nil {
		parsed, err := game.ParseStatus(string(*p.Status))
		if err != nil {
			return games.UpdateInput{}, err
		}
		in.Status = &parsed
	}
	return in, nil
}

func (h *handler) createGame(w http.ResponseWriter, r *http.Request) {
	var payload gamePayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	in := games.CreateInput{}
	if payload.SudokuID != nil {
		in.SudokuID = *payload.SudokuID
	}
	if payload.HintsUsed != nil {
		in.HintsUsed = *payload.HintsUsed
	}
	if payload.ChecksUsed != nil {
		in.ChecksUsed = *payload.ChecksUsed
	}
	if payload.Deletions != nil {
		in.Deletions = *payload.Deletions
	}
	if payload.TimeSeconds != nil {
		in.TimeTaken = time.Duration(*payload.TimeSeconds) * time.Second
	}
	if payload.Won != nil {
		in.Won = *payload.Won
	}
	if payload.Status != nil {
		parsed, err := game.ParseStatus(string(*payload.Status))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		in.Status = parsed
	}
	if payload.OriginalPuzzle != nil {
		in.OriginalPuzzle = *payload.OriginalPuzzle
	}
	if payload.Solution != nil {
		in.Solution = *payload.Solution
	}
	if payload.FinalState != nil {
		in.FinalState = *payload.FinalState
	}

	rec, err := h.app.Games.Create(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handler) listGames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := games.ListInput{
		Page:     queryInt(r, "page", 0),
		PageSize: queryInt(r, "page_size", 0),
	}
	if raw := q.Get("status"); raw != "" {
		parsed, err := game.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		in.Status = parsed
	}
	if raw := q.Get("won"); raw != "" {
		won, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid won filter %q", raw))
			return
		}
		in.Won = &won
	}
	if from, err := parseDate(q.Get("date_from")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	} else if !from.IsZero() {
		in.DateFrom = &from
	}
	if to, err := parseDate(q.Get("date_to")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	} else if !to.IsZero() {
		in.DateTo = &to
	}

	records, total, err := h.app.Games.List(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   total,
		"results": records,
	})
}

func (h *handler) getGame(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.Games.Get(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) updateGame(w http.ResponseWriter, r *http.Request) {
	var payload gamePayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	in, err := payload.updateInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.app.Games.Update(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"], in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) deleteGame(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Games.Delete(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) completeGame(w http.ResponseWriter, r *http.Request) {
	var payload gamePayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	in, err := payload.updateInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	in.Status = nil // the transition itself decides the status

	rec, err := h.app.Games.Complete(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"], in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) abandonGame(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.Games.Abandon(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) stopGame(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.Games.Stop(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) recentGames(w http.ResponseWriter, r *http.Request) {
	records, err := h.app.Games.Recent(r.Context(), middleware.GetUserID(r.Context()), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) bestScores(w http.ResponseWriter, r *http.Request) {
	records, err := h.app.Games.BestScores(r.Context(), middleware.GetUserID(r.Context()), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) bestTimes(w http.ResponseWriter, r *http.Request) {
	records, err := h.app.Games.BestTimes(r.Context(), middleware.GetUserID(r.Context()), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) bulkDeleteGames(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	deleted, err := h.app.Games.BulkDelete(r.Context(), middleware.GetUserID(r.Context()), payload.IDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// ---- sudokus -------------------------------------------------------------

func (h *handler) createSudoku(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title      string `json:"title"`
		Difficulty string `json:"difficulty"`
		Grid       string `json:"grid"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sd, err := h.app.Sudokus.Create(r.Context(), middleware.GetUserID(r.Context()), sudokus.CreateInput{
		Title:      payload.Title,
		Difficulty: payload.Difficulty,
		Grid:       payload.Grid,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sd)
}

func (h *handler) listSudokus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var difficulties []string
	if raw := q.Get("difficulties"); raw != "" {
		difficulties = strings.Split(raw, ",")
	}

	list, total, err := h.app.Sudokus.List(r.Context(), middleware.GetUserID(r.Context()),
		difficulties, queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   total,
		"results": list,
	})
}

func (h *handler) getSudoku(w http.ResponseWriter, r *http.Request) {
	sd, err := h.app.Sudokus.Get(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sd)
}

func (h *handler) updateSudoku(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title      *string `json:"title"`
		Difficulty *string `json:"difficulty"`
		Grid       *string `json:"grid"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sd, err := h.app.Sudokus.Update(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"], sudokus.UpdateInput{
		Title:      payload.Title,
		Difficulty: payload.Difficulty,
		Grid:       payload.Grid,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sd)
}

func (h *handler) deleteSudoku(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Sudokus.Delete(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) requestSolve(w http.ResponseWriter, r *http.Request) {
	sd, err := h.app.Sudokus.RequestSolve(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sd)
}

func (h *handler) abortSolve(w http.ResponseWriter, r *http.Request) {
	sd, err := h.app.Sudokus.Abort(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sd)
}

func (h *handler) getSolution(w http.ResponseWriter, r *http.Request) {
	sol, err := h.app.Sudokus.Solution(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sol)
}

func (h *handler) deleteSolution(w http.ResponseWriter, r *http.Request) {
	sd, err := h.app.Sudokus.DeleteSolution(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sd)
}

func (h *handler) sudokuStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.app.Sudokus.Status(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sudoku_status": string(status)})
}

// detectSudoku accepts either a JSON body with a base64 image or a
// multipart form with an "image" file part.
func (h *handler) detectSudoku(w http.ResponseWriter, r *http.Request) {
	image, err := readDetectImage(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sd, err := h.app.Sudokus.RequestDetect(r.Context(), middleware.GetUserID(r.Context()), image)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sd)
}

func readDetectImage(w http.ResponseWriter, r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxDetectImageBytes); err != nil {
			return "", fmt.Errorf("parse multipart form: %w", err)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return "", fmt.Errorf("image file part required")
		}
		defer file.Close()
		raw, err := io.ReadAll(io.LimitReader(file, maxDetectImageBytes))
		if err != nil {
			return "", fmt.Errorf("read image: %w", err)
		}
		return base64.StdEncoding.EncodeToString(raw), nil
	}

	var payload struct {
		Image string `json:"image"`
	}
	if err := decodeJSON(http.MaxBytesReader(w, r.Body, maxDetectImageBytes), &payload); err != nil {
		return "", err
	}
	return payload.Image, nil
}

// ---- operational ---------------------------------------------------------

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	report := h.app.Health.Check(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// ---- helpers -------------------------------------------------------------

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": err.Error()})
}

// writeServiceError maps service sentinel errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, games.ErrForbidden), errors.Is(err, sudokus.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, games.ErrInvalidTransition),
		errors.Is(err, sudokus.ErrNotSolvable),
		errors.Is(err, sudokus.ErrNotAbortable),
		errors.Is(err, sudokus.ErrSolutionLocked),
		errors.Is(err, storage.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, queue.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenRevoked),
		errors.Is(err, auth.ErrInactiveUser):
		status = http.StatusUnauthorized
	}
	writeError(w, status, err)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return t, nil
}
