package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"seats/solver"
)

type seatingResult struct {
	RunID       uuid.UUID  `json:"run_id"`
	Rows        int        `json:"rows"`
	Cols        int        `json:"cols"`
	Grid        [][]string `json:"grid"`
	Seating     []string   `json:"seating"`
	Violations  int        `json:"violations"`
	FriendScore int        `json:"friend_score"`
	Seed        int64      `json:"seed"`
	Fallback    bool       `json:"fallback"`
	CreatedAt   time.Time  `json:"created_at"`
}

// seatingGrid lays seating out row-major; seats past the roster are "".
func seatingGrid(seating []string, rows, cols int) [][]string {
	grid := make([][]string, rows)
	for row := range rows {
		grid[row] = make([]string, cols)
		for col := range cols {
			if idx := row*cols + col; idx < len(seating) {
				grid[row][col] = seating[idx]
			}
		}
	}
	return grid
}

func writeReport(w io.Writer, res seatingResult) error {
	if _, err := fmt.Fprintf(w, "Using seed: %d\n", res.Seed); err != nil {
		return err
	}
	o := solver.NewUnchecked(solver.Input{Rows: res.Rows, Cols: res.Cols})
	if err := o.Render(w, res.Seating); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Violations: %d\n", res.Violations)
	return err
}

func loadInput(db *sql.DB, class classInfo) (solver.Input, error) {
	in := solver.Input{Rows: class.Rows, Cols: class.Cols}

	rows, err := db.Query("SELECT name FROM students WHERE class_id = $1 ORDER BY id", class.ID)
	if err != nil {
		return in, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return in, err
		}
		in.Students = append(in.Students, name)
	}
	if err := rows.Err(); err != nil {
		return in, err
	}

	prows, err := db.Query(`
		SELECT sa.name, sb.name, sp.kind::text
		FROM student_pairs sp
		JOIN students sa ON sa.id = sp.student_a_id
		JOIN students sb ON sb.id = sp.student_b_id
		WHERE sa.class_id = $1
		ORDER BY sp.id`, class.ID)
	if err != nil {
		return in, err
	}
	defer prows.Close()
	for prows.Next() {
		var p solver.Pair
		var kind string
		if err := prows.Scan(&p.A, &p.B, &kind); err != nil {
			return in, err
		}
		switch kind {
		case "friend":
			in.Friends = append(in.Friends, p)
		case "flagged":
			in.Flagged = append(in.Flagged, p)
		}
	}
	return in, prows.Err()
}

func handleSolve(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClassAdmin(db, w, r)
		if !ok {
			return
		}

		class, err := loadClass(db, classID)
		if err != nil {
			http.Error(w, "class not found", http.StatusNotFound)
			return
		}

		in, err := loadInput(db, class)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		var opts []solver.Option
		if class.Seed != nil {
			opts = append(opts, solver.WithSeed(*class.Seed))
		}
		o, err := solver.New(in, opts...)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		start := time.Now()
		sol, err := o.GenerateSeatingParallel(r.Context(), class.MaxAttempts, settings.Workers)
		if errors.Is(err, context.Canceled) {
			return
		}
		res := seatingResult{
			RunID:       uuid.New(),
			Rows:        class.Rows,
			Cols:        class.Cols,
			Grid:        seatingGrid(sol.Seating, class.Rows, class.Cols),
			Seating:     sol.Seating,
			Violations:  sol.Violations,
			FriendScore: sol.FriendScore,
			Seed:        sol.Seed,
			Fallback:    sol.Fallback,
		}
		log.WithFields(logrus.Fields{
			"class":      classID,
			"run":        res.RunID,
			"students":   len(in.Students),
			"violations": res.Violations,
			"fallback":   res.Fallback,
			"elapsed":    time.Since(start),
		}).Info("generated seating")

		err = db.QueryRow(`
			INSERT INTO seatings (run_id, class_id, grid_rows, grid_cols, seating, violations, friend_score, seed, fallback)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at`,
			res.RunID, classID, res.Rows, res.Cols, pq.Array(res.Seating), res.Violations, res.FriendScore, res.Seed, res.Fallback).
			Scan(&res.CreatedAt)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, res)
	}
}

func handleLatestSeating(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClassAdmin(db, w, r)
		if !ok {
			return
		}

		var res seatingResult
		err := db.QueryRow(`
			SELECT run_id, grid_rows, grid_cols, seating, violations, friend_score, seed, fallback, created_at
			FROM seatings
			WHERE class_id = $1
			ORDER BY id DESC
			LIMIT 1`, classID).
			Scan(&res.RunID, &res.Rows, &res.Cols, pq.Array(&res.Seating), &res.Violations, &res.FriendScore, &res.Seed, &res.Fallback, &res.CreatedAt)
		if err == sql.ErrNoRows {
			http.Error(w, "no seating generated yet", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		res.Grid = seatingGrid(res.Seating, res.Rows, res.Cols)

		if r.URL.Query().Get("format") == "text" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			writeReport(w, res)
			return
		}
		writeJSON(w, res)
	}
}
