// Package backendfake is an in-process stand-in for the medscan backend, used by tests.
package backendfake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jrsteele09/go-medscan-client/sessions"
)

const signingSecret = "backendfake-secret"

// Medicine mirrors the detail document served by /api/v1/medicine/{name}.
type Medicine struct {
	BrandName               string `json:"brand_name"`
	GenericName             string `json:"generic_name"`
	Purpose                 string `json:"purpose"`
	IndicationsAndUsage     string `json:"indications_and_usage"`
	ActiveIngredient        string `json:"active_ingredient"`
	DoNotUse                string `json:"do_not_use"`
	WhenUsing               string `json:"when_using"`
	DosageAndAdministration string `json:"dosage_and_administration"`
	ImageURL                string `json:"image_url"`
}

type User struct {
	ID                 string
	Name               string
	Email              string
	Password           string
	Role               string
	SavedMedicines     []map[string]any
	CurrentMedicines   []map[string]any
	Reports            []map[string]any
	AuthorizedPatients []string
	AccessRequests     []string
}

// Backend serves the backend routes from in-memory state. Exported fields may be
// set before requests are made; use Lock/Unlock when mutating them concurrently.
type Backend struct {
	*httptest.Server
	sync.Mutex

	Users       map[string]*User    // by email
	Medicines   map[string]Medicine // by lower-case name
	Extracted   [][]string          // returned by extract_medicines
	Suggestions []string
	OTP         string
	ChatReply   string

	// Fault injection
	FailStatus map[string]int           // route template -> forced status
	DetailFail map[string]int           // medicine name -> forced status
	DetailWait map[string]time.Duration // medicine name -> artificial latency
	Block      map[string]chan struct{} // route template -> closed to release

	TokenTTL time.Duration

	calls       map[string]int
	lastQuery   map[string]string
	tokens      map[string]string // token -> user id
	uploadNames []string
}

func New() *Backend {
	b := &Backend{
		Users:      make(map[string]*User),
		Medicines:  make(map[string]Medicine),
		OTP:        "123456",
		ChatReply:  "Drink water and rest.",
		FailStatus: make(map[string]int),
		DetailFail: make(map[string]int),
		DetailWait: make(map[string]time.Duration),
		Block:      make(map[string]chan struct{}),
		TokenTTL:   time.Hour,
		calls:      make(map[string]int),
		lastQuery:  make(map[string]string),
		tokens:     make(map[string]string),
	}
	b.Server = httptest.NewServer(b.router())
	return b
}

func (b *Backend) router() *mux.Router {
	r := mux.NewRouter().UseEncodedPath()
	r.Use(b.countingMiddleware)

	r.HandleFunc("/auth/login", b.login).Methods(http.MethodPost)
	r.HandleFunc("/auth/signup", b.signup).Methods(http.MethodPost)
	r.HandleFunc("/auth/forget_password", b.forgetPassword).Methods(http.MethodPost)
	r.HandleFunc("/auth/reset_password", b.resetPassword).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", b.logout).Methods(http.MethodPost)
	r.HandleFunc("/auth/login/google", b.googleLogin).Methods(http.MethodGet)

	r.HandleFunc("/medicine_suggestions", b.suggestions).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/medicine/{name}", b.medicine).Methods(http.MethodGet)
	api.HandleFunc("/extract_medicines", b.extract).Methods(http.MethodPost)
	api.HandleFunc("/save_medicine", b.authed(b.saveMedicine)).Methods(http.MethodPost)
	api.HandleFunc("/get_saved_medicines", b.authed(b.savedMedicines)).Methods(http.MethodGet)
	api.HandleFunc("/add_medicine", b.authed(b.addMedicine)).Methods(http.MethodPost)
	api.HandleFunc("/get_user_details", b.authed(b.userDetails)).Methods(http.MethodGet)
	api.HandleFunc("/upload-reports", b.authed(b.uploadReports)).Methods(http.MethodPost)
	api.HandleFunc("/save-summary", b.authed(b.saveSummary)).Methods(http.MethodPost)
	api.HandleFunc("/get-reports/{user_id}", b.reports).Methods(http.MethodGet)
	api.HandleFunc("/search-doctor", b.searchDoctor).Methods(http.MethodGet)
	api.HandleFunc("/request-access", b.authed(b.requestAccess)).Methods(http.MethodPost)
	api.HandleFunc("/get-authorized-patients-data/{id}", b.authed(b.authorizedPatients)).Methods(http.MethodGet)
	api.HandleFunc("/get-requests/{doctor_id}", b.authed(b.pendingRequests)).Methods(http.MethodGet)
	api.HandleFunc("/accept-request", b.authed(b.acceptRequest)).Methods(http.MethodPost)
	api.HandleFunc("/ask-ai", b.askAI).Methods(http.MethodPost)
	return r
}

// Calls returns how many requests hit the route template (e.g. "/api/v1/medicine/{name}").
func (b *Backend) Calls(route string) int {
	b.Lock()
	defer b.Unlock()
	return b.calls[route]
}

// LastQuery returns the raw query string of the most recent request to route.
func (b *Backend) LastQuery(route string) string {
	b.Lock()
	defer b.Unlock()
	return b.lastQuery[route]
}

// UploadedNames returns the filenames of every image part received so far.
func (b *Backend) UploadedNames() []string {
	b.Lock()
	defer b.Unlock()
	return append([]string(nil), b.uploadNames...)
}

// AddUser registers a user and returns it.
func (b *Backend) AddUser(name, email, password, role string) *User {
	b.Lock()
	defer b.Unlock()
	u := &User{ID: uuid.New().String(), Name: name, Email: email, Password: password, Role: role}
	b.Users[strings.ToLower(email)] = u
	return u
}

// IssueToken mints a token for user the way the backend does on login.
func (b *Backend) IssueToken(u *User) string {
	b.Lock()
	defer b.Unlock()
	return b.issueTokenLocked(u)
}

// SessionFor issues a token for u and returns the Session a login would have saved.
func (b *Backend) SessionFor(u *User) sessions.Session {
	s := sessions.FromToken(b.IssueToken(u), u.ID, sessions.Role(u.Role))
	s.Name = u.Name
	s.Email = u.Email
	return s
}

// RevokeAll forgets every issued token, so the next authenticated call gets 401.
func (b *Backend) RevokeAll() {
	b.Lock()
	defer b.Unlock()
	b.tokens = make(map[string]string)
}

func (b *Backend) issueTokenLocked(u *User) string {
	claims := jwtlib.MapClaims{
		"user_id": u.ID,
		"exp":     time.Now().Add(b.TokenTTL).Unix(),
		"jti":     uuid.New().String(),
	}
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(signingSecret))
	if err != nil {
		panic(err)
	}
	b.tokens[tok] = u.ID
	return tok
}

func (b *Backend) countingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tpl := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if t, err := route.GetPathTemplate(); err == nil {
				tpl = t
			}
		}

		b.Lock()
		b.calls[tpl]++
		b.lastQuery[tpl] = r.URL.RawQuery
		status := b.FailStatus[tpl]
		block := b.Block[tpl]
		b.Unlock()

		if block != nil {
			select {
			case <-block:
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			writeJSON(w, status, map[string]string{"error": "forced failure", "message": fmt.Sprintf("forced %d", status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) authed(next func(http.ResponseWriter, *http.Request, *User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Missing or invalid Authorization token"})
			return
		}

		b.Lock()
		userID, ok := b.tokens[parts[1]]
		user := b.userByIDLocked(userID)
		b.Unlock()
		if !ok || user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
			return
		}
		next(w, r, user)
	}
}

func (b *Backend) userByIDLocked(id string) *User {
	for _, u := range b.Users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing required fields"})
		return
	}

	b.Lock()
	defer b.Unlock()
	u := b.Users[strings.ToLower(req.Email)]
	if u == nil || u.Password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": b.issueTokenLocked(u), "message": "Login Successful"})
}

func (b *Backend) signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing required fields"})
		return
	}

	b.Lock()
	defer b.Unlock()
	if _, exists := b.Users[strings.ToLower(req.Email)]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "User already exists"})
		return
	}
	role := req.Role
	if role == "" {
		role = "patient"
	}
	u := &User{ID: uuid.New().String(), Name: req.Name, Email: req.Email, Password: req.Password, Role: role}
	b.Users[strings.ToLower(req.Email)] = u
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": u.ID, "token": b.issueTokenLocked(u), "message": "User created"})
}

func (b *Backend) forgetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Email is required"})
		return
	}
	b.Lock()
	_, ok := b.Users[strings.ToLower(req.Email)]
	b.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset link sent to your email"})
}

func (b *Backend) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		OTP      string `json:"otp"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}

	b.Lock()
	defer b.Unlock()
	u := b.Users[strings.ToLower(req.Email)]
	if u == nil || req.OTP != b.OTP || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid or expired token"})
		return
	}
	u.Password = req.Password
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

func (b *Backend) googleLogin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"authorization_url": "https://accounts.google.com/o/oauth2/auth?client_id=fake&state=" + uuid.NewString()})
}

func (b *Backend) medicine(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(mux.Vars(r)["name"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad medicine name"})
		return
	}
	key := strings.ToLower(name)

	b.Lock()
	status := b.DetailFail[name]
	wait := b.DetailWait[name]
	med, ok := b.Medicines[key]
	b.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		writeJSON(w, status, map[string]string{"error": "An error occurred", "message": "lookup failed for " + name})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Medicine not found", "message": "Try another brand name"})
		return
	}
	writeJSON(w, http.StatusOK, med)
}

func (b *Backend) suggestions(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(r.URL.Query().Get("query"))
	if len(query) < 3 {
		writeJSON(w, http.StatusOK, []string{})
		return
	}

	b.Lock()
	var out []string
	for _, s := range b.Suggestions {
		if strings.HasPrefix(strings.ToLower(s), query) {
			out = append(out, s)
		}
	}
	b.Unlock()

	if len(out) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No suggestions found", "message": "No medicines match your query"})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) extract(w http.ResponseWriter, r *http.Request) {
	names, ok := b.readImages(w, r)
	if !ok {
		return
	}

	b.Lock()
	medicines := b.Extracted
	b.Unlock()
	if medicines == nil {
		medicines = [][]string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recognized_text": strings.Join(names, ","),
		"medicines":       medicines,
	})
}

func (b *Backend) readImages(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No image file provided"})
		return nil, false
	}
	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No image file provided"})
		return nil, false
	}

	names := make([]string, 0, len(files))
	for _, fh := range files {
		names = append(names, fh.Filename)
	}
	b.Lock()
	b.uploadNames = append(b.uploadNames, names...)
	b.Unlock()
	return names, true
}

func (b *Backend) saveMedicine(w http.ResponseWriter, r *http.Request, u *User) {
	var req struct {
		MedicineDetails map[string]any `json:"medicine_details"`
	}
	if !decode(w, r, &req) {
		return
	}
	if len(req.MedicineDetails) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing medicine details"})
		return
	}
	b.Lock()
	u.SavedMedicines = append(u.SavedMedicines, req.MedicineDetails)
	b.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Medicine saved successfully", "medicine": req.MedicineDetails})
}

func (b *Backend) savedMedicines(w http.ResponseWriter, r *http.Request, u *User) {
	b.Lock()
	defer b.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"medicines": nonNil(u.SavedMedicines)})
}

func (b *Backend) addMedicine(w http.ResponseWriter, r *http.Request, u *User) {
	var req map[string]any
	if !decode(w, r, &req) {
		return
	}
	for _, field := range []string{"name", "consulting_date", "dosage_period", "num_medicines", "times"} {
		if v, ok := req[field]; !ok || v == "" || v == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields"})
			return
		}
	}
	b.Lock()
	u.CurrentMedicines = append(u.CurrentMedicines, req)
	b.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Medicine added successfully", "medicine": req})
}

func (b *Backend) userDetails(w http.ResponseWriter, r *http.Request, u *User) {
	b.Lock()
	defer b.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{
		"_id":               u.ID,
		"name":              u.Name,
		"email":             u.Email,
		"role":              u.Role,
		"saved_medicines":   nonNil(u.SavedMedicines),
		"current_medicines": nonNil(u.CurrentMedicines),
		"reports":           nonNil(u.Reports),
	}})
}

func (b *Backend) uploadReports(w http.ResponseWriter, r *http.Request, u *User) {
	names, ok := b.readImages(w, r)
	if !ok {
		return
	}
	text := "report text from " + strings.Join(names, ", ")
	writeJSON(w, http.StatusOK, map[string]string{
		"extracted_text": text,
		"summary":        fmt.Sprintf("summary of %d page(s)", len(names)),
	})
}

func (b *Backend) saveSummary(w http.ResponseWriter, r *http.Request, u *User) {
	var req struct {
		ExtractedText string `json:"extracted_text"`
		Summary       string `json:"summary"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.ExtractedText == "" || req.Summary == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing extracted text or summary"})
		return
	}
	report := map[string]any{"extracted_text": req.ExtractedText, "summary": req.Summary, "created_at": time.Now().UTC().Format(time.RFC3339)}
	b.Lock()
	u.Reports = append(u.Reports, report)
	b.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Summary saved successfully", "report": report})
}

func (b *Backend) reports(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["user_id"]
	b.Lock()
	defer b.Unlock()
	u := b.userByIDLocked(id)
	if u == nil || len(u.Reports) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No reports found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": u.Reports})
}

func (b *Backend) searchDoctor(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Please provide a name to search"})
		return
	}

	b.Lock()
	var doctors []map[string]string
	for _, u := range b.Users {
		if u.Role == "doctor" && strings.Contains(strings.ToLower(u.Name), strings.ToLower(name)) {
			doctors = append(doctors, map[string]string{"user_id": u.ID, "name": u.Name, "email": u.Email})
		}
	}
	b.Unlock()

	if len(doctors) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No doctors found"})
		return
	}
	sort.Slice(doctors, func(i, j int) bool { return doctors[i]["name"] < doctors[j]["name"] })
	writeJSON(w, http.StatusOK, map[string]any{"doctors": doctors})
}

func (b *Backend) requestAccess(w http.ResponseWriter, r *http.Request, u *User) {
	var req struct {
		PatientID string `json:"patient_id"`
		DoctorID  string `json:"doctor_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.DoctorID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing user data"})
		return
	}

	b.Lock()
	defer b.Unlock()
	doctor := b.userByIDLocked(req.DoctorID)
	if doctor == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Doctor not found"})
		return
	}
	doctor.AccessRequests = append(doctor.AccessRequests, u.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Access request sent successfully"})
}

func (b *Backend) authorizedPatients(w http.ResponseWriter, r *http.Request, u *User) {
	if mux.Vars(r)["id"] != u.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Unauthorized access"})
		return
	}

	b.Lock()
	defer b.Unlock()
	patients := make([]map[string]any, 0, len(u.AuthorizedPatients))
	for _, id := range u.AuthorizedPatients {
		if p := b.userByIDLocked(id); p != nil {
			patients = append(patients, map[string]any{
				"patient_id":        p.ID,
				"name":              p.Name,
				"saved_medicines":   nonNil(p.SavedMedicines),
				"current_medicines": nonNil(p.CurrentMedicines),
				"reports":           nonNil(p.Reports),
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"authorized_patients": patients})
}

func (b *Backend) pendingRequests(w http.ResponseWriter, r *http.Request, u *User) {
	if mux.Vars(r)["doctor_id"] != u.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Unauthorized request"})
		return
	}

	b.Lock()
	defer b.Unlock()
	requests := make([]map[string]string, 0, len(u.AccessRequests))
	for _, id := range u.AccessRequests {
		if p := b.userByIDLocked(id); p != nil {
			requests = append(requests, map[string]string{"patient_id": p.ID, "patient_name": p.Name, "patient_email": p.Email})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (b *Backend) acceptRequest(w http.ResponseWriter, r *http.Request, u *User) {
	var req struct {
		PatientID string `json:"patient_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.PatientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing patient_id"})
		return
	}

	b.Lock()
	defer b.Unlock()
	remaining := u.AccessRequests[:0]
	for _, id := range u.AccessRequests {
		if id != req.PatientID {
			remaining = append(remaining, id)
		}
	}
	u.AccessRequests = remaining
	u.AuthorizedPatients = append(u.AuthorizedPatients, req.PatientID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Request accepted, access granted"})
}

func (b *Backend) askAI(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing 'query' parameter"})
		return
	}
	b.Lock()
	reply := b.ChatReply
	b.Unlock()
	writeJSON(w, http.StatusOK, reply)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil(v []map[string]any) []map[string]any {
	if v == nil {
		return []map[string]any{}
	}
	return v
}
