package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/idtoken"

	"seats/config"
)

//go:embed schema.sql
var schema string

var log = logrus.New()

var settings config.Server

var pairKinds = []string{"friend", "flagged"}

func main() {
	var err error
	settings, err = config.ReadServer()
	if err != nil {
		log.Fatal(err)
	}

	db, err := sql.Open("postgres", settings.PGConn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	log.Println("connected to database")

	if _, err := db.Exec(schema); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	http.HandleFunc("POST /auth/google/callback", handleGoogleCallback)
	http.HandleFunc("GET /api/admin/check", handleAdminCheck)
	http.HandleFunc("GET /api/classes", handleListClasses(db))
	http.HandleFunc("POST /api/classes", handleCreateClass(db))
	http.HandleFunc("DELETE /api/classes/{classID}", handleDeleteClass(db))
	http.HandleFunc("POST /api/classes/{classID}/admins", handleAddClassAdmin(db))
	http.HandleFunc("DELETE /api/classes/{classID}/admins/{adminID}", handleRemoveClassAdmin(db))
	http.HandleFunc("GET /api/classes/{classID}", handleGetClass(db))
	http.HandleFunc("PATCH /api/classes/{classID}", handleUpdateClass(db))
	http.HandleFunc("GET /api/classes/{classID}/students", handleListStudents(db))
	http.HandleFunc("POST /api/classes/{classID}/students", handleCreateStudent(db))
	http.HandleFunc("DELETE /api/classes/{classID}/students/{studentID}", handleDeleteStudent(db))
	http.HandleFunc("GET /api/classes/{classID}/pairs", handleListPairs(db))
	http.HandleFunc("POST /api/classes/{classID}/pairs", handleCreatePair(db))
	http.HandleFunc("DELETE /api/classes/{classID}/pairs/{pairID}", handleDeletePair(db))
	http.HandleFunc("POST /api/classes/{classID}/seatings", handleSolve(db))
	http.HandleFunc("GET /api/classes/{classID}/seatings/latest", handleLatestSeating(db))
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			http.Error(w, "db unhealthy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	})

	log.WithField("addr", settings.Addr).Info("listening")
	log.Fatal(http.ListenAndServe(settings.Addr, nil))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	credential := r.FormValue("credential")
	if credential == "" {
		http.Error(w, "missing credential", http.StatusBadRequest)
		return
	}

	payload, err := idtoken.Validate(context.Background(), credential, settings.ClientID)
	if err != nil {
		log.WithError(err).Warn("failed to validate token")
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		http.Error(w, "token has no email", http.StatusUnauthorized)
		return
	}

	writeJSON(w, map[string]any{
		"email":   email,
		"name":    payload.Claims["name"],
		"picture": payload.Claims["picture"],
		"token":   signEmail(email),
	})
}

func signEmail(email string) string {
	h := hmac.New(sha256.New, []byte(settings.ClientSecret))
	h.Write([]byte(email))
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return base64.RawURLEncoding.EncodeToString([]byte(email)) + "." + sig
}

func authorize(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	emailBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	email := string(emailBytes)
	if !hmac.Equal([]byte(signEmail(email)), []byte(token)) {
		return "", false
	}
	return email, true
}

func isAdmin(email string) bool {
	return slices.Contains(settings.Admins, email)
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	if !isAdmin(email) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return email, true
}

func isClassAdmin(db *sql.DB, email string, classID int64) bool {
	var exists bool
	db.QueryRow("SELECT EXISTS(SELECT 1 FROM class_admins WHERE class_id = $1 AND email = $2)", classID, email).Scan(&exists)
	return exists
}

func requireClassAdmin(db *sql.DB, w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", 0, false
	}
	classID, err := strconv.ParseInt(r.PathValue("classID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid class ID", http.StatusBadRequest)
		return "", 0, false
	}
	if !isAdmin(email) && !isClassAdmin(db, email, classID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", 0, false
	}
	return email, classID, true
}

func handleAdminCheck(w http.ResponseWriter, r *http.Request) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]bool{"admin": isAdmin(email)})
}

type classInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Rows        int    `json:"rows"`
	Cols        int    `json:"cols"`
	MaxAttempts int    `json:"max_attempts"`
	Seed        *int64 `json:"seed"`
}

func handleListClasses(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		rows, err := db.Query(`
			SELECT c.id, c.name, c.grid_rows, c.grid_cols, c.max_attempts, c.seed, COALESCE(
				json_agg(json_build_object('id', ca.id, 'email', ca.email)) FILTER (WHERE ca.id IS NOT NULL),
				'[]'
			)
			FROM classes c
			LEFT JOIN class_admins ca ON ca.class_id = c.id
			GROUP BY c.id
			ORDER BY c.id`)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		type classAdmin struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		}
		type class struct {
			classInfo
			Admins []classAdmin `json:"admins"`
		}

		var classes []class
		for rows.Next() {
			var c class
			var seed sql.NullInt64
			var adminsJSON string
			if err := rows.Scan(&c.ID, &c.Name, &c.Rows, &c.Cols, &c.MaxAttempts, &seed, &adminsJSON); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if seed.Valid {
				c.Seed = &seed.Int64
			}
			json.Unmarshal([]byte(adminsJSON), &c.Admins)
			classes = append(classes, c)
		}
		if classes == nil {
			classes = []class{}
		}
		writeJSON(w, classes)
	}
}

func handleCreateClass(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		var id int64
		err := db.QueryRow("INSERT INTO classes (name) VALUES ($1) RETURNING id", body.Name).Scan(&id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"id": id, "name": body.Name})
	}
}

func handleDeleteClass(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		classID, err := strconv.ParseInt(r.PathValue("classID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid class ID", http.StatusBadRequest)
			return
		}
		result, err := db.Exec("DELETE FROM classes WHERE id = $1", classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "class not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleAddClassAdmin(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		classID, err := strconv.ParseInt(r.PathValue("classID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid class ID", http.StatusBadRequest)
			return
		}
		var body struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
			http.Error(w, "email is required", http.StatusBadRequest)
			return
		}
		var id int64
		err = db.QueryRow("INSERT INTO class_admins (class_id, email) VALUES ($1, $2) RETURNING id", classID, body.Email).Scan(&id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"id": id, "email": body.Email})
	}
}

func handleRemoveClassAdmin(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		classID, err := strconv.ParseInt(r.PathValue("classID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid class ID", http.StatusBadRequest)
			return
		}
		adminID, err := strconv.ParseInt(r.PathValue("adminID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid admin ID", http.StatusBadRequest)
			return
		}
		result, err := db.Exec("DELETE FROM class_admins WHERE id = $1 AND class_id = $2", adminID, classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "class admin not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func loadClass(db *sql.DB, classID int64) (classInfo, error) {
	c := classInfo{ID: classID}
	var seed sql.NullInt64
	err := db.QueryRow("SELECT name, grid_rows, grid_cols, max_attempts, seed FROM classes WHERE id = $1", classID).
		Scan(&c.Name, &c.Rows, &c.Cols, &c.MaxAttempts, &seed)
	if seed.Valid {
		c.Seed = &seed.Int64
	}
	return c, err
}

func handleGetClass(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClassAdmin(db, w, r)
		if !ok {
			return
		}
		c, err := loadClass(db, classID)
		if err != nil {
			http.Error(w, "class not found", http.StatusNotFound)
			return
		}
		writeJSON(w, c)
	}
}

func handleUpdateClass(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClassAdmin(db, w, r)
		if !ok {
			return
		}
		var body struct {
			Rows        *int   `json:"rows"`
			Cols        *int   `json:"cols"`
			MaxAttempts *int   `json:"max_attempts"`
			Seed        *int64 `json:"seed"`
			ClearSeed   bool   `json:"clear_seed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.Rows != nil && *body.Rows < 1 {
			http.Error(w, "rows must be at least 1", http.StatusBadRequest)
			return
		}
		if body.Cols != nil && *body.Cols < 1 {
			http.Error(w, "cols must be at least 1", http.StatusBadRequest)
			return
		}
		if body.MaxAttempts != nil && *body.MaxAttempts < 0 {
			http.Error(w, "max_attempts must be at least 0", http.StatusBadRequest)
			return
		}

		updates := []struct {
			column string
			value  any
			set    bool
		}{
			{"grid_rows", body.Rows, body.Rows != nil},
			{"grid_cols", body.Cols, body.Cols != nil},
			{"max_attempts", body.MaxAttempts, body.MaxAttempts != nil},
			{"seed", body.Seed, body.Seed != nil || body.ClearSeed},
		}
		for _, u := range updates {
			if !u.set {
				continue
			}
			if _, err := db.Exec("UPDATE classes SET "+u.column+" = $1 WHERE id = $2", u.value, classID); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListStudents(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClassAdmin(db, w, r)
		if !ok {
			return
		}
		rows, err := db.Query("SELECT id, name FROM students WHERE class_id = $1 ORDER BY id", classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		type student struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		}
		var students []student
		for rows.Next() {
			var s student
			if err := rows.Scan(&s.ID, &s.Name); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			students = append(students, s)
		}
		if students == nil {
			students = []student{}
		}
		writeJSON(w, students)
	}
}

func handleCreateStudent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClassAdmin(db, w, r)
		if !ok {
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		var id int64
		err := db.QueryRow("INSERT INTO students (class_id, name) VALUES ($1, $2) RETURNING id", classID, body.Name).Scan(&id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"id": id, "name": body.Name})
	}
}

func handleDeleteStudent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClassAdmin(db, w, r)
		if !ok {
			return
		}
		studentID, err := strconv.ParseInt(r.PathValue("studentID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid student ID", http.StatusBadRequest)
			return
		}
		result, err := db.Exec("DELETE FROM students WHERE id = $1 AND class_id = $2", studentID, classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "student not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListPairs(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClassAdmin(db, w, r)
		if !ok {
			return
		}
		rows, err := db.Query(`
			SELECT sp.id, sp.student_a_id, sa.name, sp.student_b_id, sb.name, sp.kind::text
			FROM student_pairs sp
			JOIN students sa ON sa.id = sp.student_a_id
			JOIN students sb ON sb.id = sp.student_b_id
			WHERE sa.class_id = $1
			ORDER BY sp.id`, classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		type pair struct {
			ID           int64  `json:"id"`
			StudentAID   int64  `json:"student_a_id"`
			StudentAName string `json:"student_a_name"`
			StudentBID   int64  `json:"student_b_id"`
			StudentBName string `json:"student_b_name"`
			Kind         string `json:"kind"`
		}
		var pairs []pair
		for rows.Next() {
			var p pair
			if err := rows.Scan(&p.ID, &p.StudentAID, &p.StudentAName, &p.StudentBID, &p.StudentBName, &p.Kind); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			pairs = append(pairs, p)
		}
		if pairs == nil {
			pairs = []pair{}
		}
		writeJSON(w, pairs)
	}
}

func handleCreatePair(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClassAdmin(db, w, r)
		if !ok {
			return
		}
		var body struct {
			StudentAID int64  `json:"student_a_id"`
			StudentBID int64  `json:"student_b_id"`
			Kind       string `json:"kind"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.StudentAID == body.StudentBID {
			http.Error(w, "students must be different", http.StatusBadRequest)
			return
		}
		if !slices.Contains(pairKinds, body.Kind) {
			http.Error(w, "invalid kind", http.StatusBadRequest)
			return
		}
		// pairs are unordered; the lower id is always stored first
		a, b := min(body.StudentAID, body.StudentBID), max(body.StudentAID, body.StudentBID)
		var id int64
		err := db.QueryRow(`
			INSERT INTO student_pairs (student_a_id, student_b_id, kind)
			SELECT $1, $2, $3::pair_kind
			FROM students sa
			JOIN students sb ON sb.id = $2 AND sb.class_id = $4
			WHERE sa.id = $1 AND sa.class_id = $4
			ON CONFLICT (student_a_id, student_b_id, kind) DO UPDATE SET kind = EXCLUDED.kind
			RETURNING id`, a, b, body.Kind, classID).Scan(&id)
		if err == sql.ErrNoRows {
			http.Error(w, "student not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"id": id})
	}
}

func handleDeletePair(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClassAdmin(db, w, r)
		if !ok {
			return
		}
		pairID, err := strconv.ParseInt(r.PathValue("pairID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid pair ID", http.StatusBadRequest)
			return
		}
		result, err := db.Exec(`DELETE FROM student_pairs WHERE id = $1
			AND student_a_id IN (SELECT id FROM students WHERE class_id = $2)`, pairID, classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "pair not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
