package simulator

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telescopiosnaescola/argus/internal/session"
	"github.com/telescopiosnaescola/argus/internal/timesync"
	"github.com/telescopiosnaescola/argus/pkg/api"
)

// Context keys set by requireSession.
const (
	ctxEmail = "email"
	ctxAdmin = "admin"
)

func statusOK(message string) api.StatusResponse {
	return api.StatusResponse{Status: "success", Message: message}
}

func statusError(message string) api.StatusResponse {
	return api.StatusResponse{Status: "error", Message: message}
}

// requireSession authenticates the request from the sessionid cookie.
func (s *Server) requireSession(c *gin.Context) {
	token, err := c.Cookie(session.SessionCookie)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusForbidden, statusError("authentication required"))
		return
	}

	claims, err := verifySession([]byte(s.config.SessionSecret), token)
	if err != nil {
		s.logger.Debug("Rejected session cookie", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusForbidden, statusError("invalid session"))
		return
	}

	c.Set(ctxEmail, claims.Email)
	c.Set(ctxAdmin, claims.Admin)
	c.Next()
}

// requireCSRF enforces the double submit check on mutating requests: the
// X-CSRFToken header must match the csrftoken cookie.
func (s *Server) requireCSRF(c *gin.Context) {
	cookie, err := c.Cookie(session.CSRFCookie)
	if err != nil || cookie == "" || c.GetHeader(session.CSRFHeader) != cookie {
		c.AbortWithStatusJSON(http.StatusForbidden, statusError("CSRF token missing or invalid"))
		return
	}
	c.Next()
}

// requireAdmin restricts an endpoint to admin accounts.
func (s *Server) requireAdmin(c *gin.Context) {
	if !c.GetBool(ctxAdmin) {
		c.AbortWithStatusJSON(http.StatusForbidden, statusError("admin privileges required"))
		return
	}
	c.Next()
}

func (s *Server) setAuthCookies(c *gin.Context, user *User) error {
	sessionToken, err := mintSession([]byte(s.config.SessionSecret), user)
	if err != nil {
		return err
	}

	maxAge := int(sessionTTL.Seconds())
	c.SetCookie(session.SessionCookie, sessionToken, maxAge, "/", "", false, true)
	c.SetCookie(session.CSRFCookie, newCSRFToken(), maxAge, "/", "", false, false)
	return nil
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.FieldErrors{"non_field_errors": {"malformed request body"}})
		return
	}

	user, ok := s.store.userByEmail(req.Email)
	if !ok || !checkPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusBadRequest, api.FieldErrors{"non_field_errors": {"invalid email or password"}})
		return
	}

	if err := s.setAuthCookies(c, user); err != nil {
		s.logger.Error("Failed to mint session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, statusError("failed to create session"))
		return
	}

	s.logger.Info("User logged in", zap.String("email", user.Email))
	c.JSON(http.StatusOK, statusOK("logged in"))
}

func (s *Server) handleRegister(c *gin.Context) {
	var req struct {
		Email        string `json:"email"`
		CompleteName string `json:"completeName"`
		Password1    string `json:"password1"`
		Password2    string `json:"password2"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.FieldErrors{"non_field_errors": {"malformed request body"}})
		return
	}

	errs := api.FieldErrors{}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		errs["email"] = append(errs["email"], "enter a valid email address")
	}
	if req.CompleteName == "" {
		errs["completeName"] = append(errs["completeName"], "this field is required")
	}
	if len(req.Password1) < 8 {
		errs["password1"] = append(errs["password1"], "password must be at least 8 characters")
	}
	if req.Password1 != req.Password2 {
		errs["password2"] = append(errs["password2"], "passwords do not match")
	}
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, errs)
		return
	}

	hash, err := hashPassword(req.Password1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, statusError("failed to store credentials"))
		return
	}

	user := &User{
		ID:           newCSRFToken(),
		Email:        req.Email,
		CompleteName: req.CompleteName,
		PasswordHash: hash,
	}
	if err := s.store.addUser(user); err != nil {
		c.JSON(http.StatusBadRequest, api.FieldErrors{"email": {"an account with this email already exists"}})
		return
	}

	s.logger.Info("User registered", zap.String("email", user.Email))
	c.JSON(http.StatusCreated, statusOK("account created"))
}

func (s *Server) handleAppInfo(c *gin.Context) {
	c.JSON(http.StatusOK, api.AppInfo{
		Latitude:    strconv.FormatFloat(s.config.SiteLatitude, 'f', -1, 64),
		Longitude:   strconv.FormatFloat(s.config.SiteLongitude, 'f', -1, 64),
		Filters:     s.config.Filters,
		FrameTypes:  s.config.FrameTypes,
		CurrentTime: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleFetchPlans(c *gin.Context) {
	plans := s.store.plansByOwner(c.GetString(ctxEmail), false)
	if plans == nil {
		plans = []api.ObservationPlan{}
	}
	c.JSON(http.StatusOK, plans)
}

func (s *Server) handleFetchObserved(c *gin.Context) {
	observed := s.store.plansByOwner(c.GetString(ctxEmail), true)
	if observed == nil {
		observed = []api.ObservationPlan{}
	}
	c.JSON(http.StatusOK, observed)
}

func (s *Server) handlePresavedList(c *gin.Context) {
	now := time.Now().UTC()
	objects := []api.PresavedObject{}
	for _, obj := range presavedCatalog {
		if allowed, _ := s.checkObservable(obj.RA, obj.DEC, now); allowed {
			objects = append(objects, api.PresavedObject{Name: obj.Name, RA: obj.RA, DEC: obj.DEC})
		}
	}
	c.JSON(http.StatusOK, gin.H{"objects": objects})
}

func (s *Server) handleCreatePlan(c *gin.Context) {
	var req api.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, statusError("malformed request body"))
		return
	}

	if req.Name == "" || req.Filters == "" || req.FrameMode == "" || req.StartTime == "" {
		c.JSON(http.StatusOK, statusError("name, filters, framemode and start_time are required"))
		return
	}
	if req.ExpTime <= 0 {
		c.JSON(http.StatusOK, statusError("exposure time must be positive"))
		return
	}
	if _, err := time.Parse(timesync.DateTimeLocal, req.StartTime); err != nil {
		c.JSON(http.StatusOK, statusError("start_time is not a valid datetime"))
		return
	}

	plan := api.ObservationPlan{
		Name:       req.Name,
		ObjectName: req.ObjectName,
		Filters:    req.Filters,
		FrameMode:  req.FrameMode,
		ExpTime:    req.ExpTime,
		StartTime:  req.StartTime,
	}

	switch {
	case req.RA != "" && req.DEC != "":
		ra, errRA := strconv.ParseFloat(req.RA, 64)
		dec, errDEC := strconv.ParseFloat(req.DEC, 64)
		if errRA != nil || errDEC != nil {
			c.JSON(http.StatusOK, statusError("ra and dec must be decimal degrees"))
			return
		}
		plan.RA = ra
		plan.DEC = dec
	case req.ObjectName != "":
		found := false
		for _, obj := range presavedCatalog {
			if obj.Name == req.ObjectName {
				plan.RA = obj.RA
				plan.DEC = obj.DEC
				found = true
				break
			}
		}
		if !found {
			c.JSON(http.StatusOK, statusError(fmt.Sprintf("unknown object %q", req.ObjectName)))
			return
		}
	default:
		c.JSON(http.StatusOK, statusError("either coordinates or an object name is required"))
		return
	}

	created := s.store.addPlan(c.GetString(ctxEmail), plan)
	s.logger.Info("Plan created",
		zap.Int("plan_id", created.ID),
		zap.String("owner", c.GetString(ctxEmail)))
	c.JSON(http.StatusOK, statusOK(fmt.Sprintf("plan %d created", created.ID)))
}

func (s *Server) handleDeletePlan(c *gin.Context) {
	var req struct {
		PlanID int `json:"plan_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, statusError("malformed request body"))
		return
	}

	if !s.store.deletePlan(c.GetString(ctxEmail), req.PlanID) {
		c.JSON(http.StatusOK, statusError(fmt.Sprintf("plan %d not found", req.PlanID)))
		return
	}
	c.JSON(http.StatusOK, statusOK(fmt.Sprintf("plan %d deleted", req.PlanID)))
}

func (s *Server) handleCheckPlanOK(c *gin.Context) {
	var req struct {
		PlanID int  `json:"plan_id"`
		Now    bool `json:"now"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, statusError("malformed request body"))
		return
	}

	plan, ok := s.store.planByID(c.GetString(ctxEmail), req.PlanID)
	if !ok {
		c.JSON(http.StatusOK, statusError(fmt.Sprintf("plan %d not found", req.PlanID)))
		return
	}

	at := time.Now().UTC()
	if !req.Now {
		parsed, err := time.Parse(timesync.DateTimeLocal, plan.StartTime)
		if err != nil {
			c.JSON(http.StatusOK, statusError("plan start time is not a valid datetime"))
			return
		}
		at = parsed.UTC()
	}

	allowed, distance := s.checkObservable(plan.RA, plan.DEC, at)
	if !allowed {
		c.JSON(http.StatusOK, statusError(fmt.Sprintf("target not observable, %.1f degrees from zenith", distance)))
		return
	}
	c.JSON(http.StatusOK, statusOK("plan is observable"))
}

func (s *Server) handleExecutePlan(c *gin.Context) {
	var req struct {
		PlanID int `json:"plan_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, statusError("malformed request body"))
		return
	}

	plan, ok := s.store.planByID(c.GetString(ctxEmail), req.PlanID)
	if !ok {
		c.JSON(http.StatusOK, statusError(fmt.Sprintf("plan %d not found", req.PlanID)))
		return
	}
	if plan.Executed {
		c.JSON(http.StatusOK, statusError(fmt.Sprintf("plan %d was already executed", req.PlanID)))
		return
	}
	if s.store.telescopeStatus().Status != "idle" {
		c.JSON(http.StatusOK, statusError("telescope is busy"))
		return
	}

	go s.executePlan(plan)
	c.JSON(http.StatusOK, statusOK(fmt.Sprintf("plan %d queued for execution", req.PlanID)))
}

func (s *Server) handleRequestFile(c *gin.Context) {
	var req struct {
		Filename string `json:"filename"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, statusError("malformed request body"))
		return
	}

	if !s.store.outputOwned(c.GetString(ctxEmail), req.Filename) {
		c.JSON(http.StatusNotFound, statusError(fmt.Sprintf("file %q not found", req.Filename)))
		return
	}

	if strings.HasSuffix(req.Filename, ".gif") {
		c.Data(http.StatusOK, "image/gif", previewGIF())
		return
	}
	c.Data(http.StatusOK, "application/fits", placeholderFITS(req.Filename))
}

func (s *Server) handleGetReservations(c *gin.Context) {
	reservations := s.store.allReservations()
	if reservations == nil {
		reservations = []api.Reservation{}
	}
	c.JSON(http.StatusOK, gin.H{"reservations": reservations})
}

func (s *Server) handleGetEmails(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"emails": s.store.userEmails()})
}

func (s *Server) handleReserveTime(c *gin.Context) {
	var req struct {
		UserEmail string `json:"user_email"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, statusError("malformed request body"))
		return
	}

	user, ok := s.store.userByEmail(req.UserEmail)
	if !ok {
		c.JSON(http.StatusOK, statusError(fmt.Sprintf("no user with email %s", req.UserEmail)))
		return
	}

	start, errStart := time.Parse(timesync.DateTimeLocal, req.StartTime)
	end, errEnd := time.Parse(timesync.DateTimeLocal, req.EndTime)
	if errStart != nil || errEnd != nil {
		c.JSON(http.StatusOK, statusError("start_time and end_time must be valid datetimes"))
		return
	}
	if !end.After(start) {
		c.JSON(http.StatusOK, statusError("end_time must be after start_time"))
		return
	}

	created := s.store.addReservation(user.Email, api.Reservation{
		User:      user.Email,
		Username:  user.CompleteName,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	c.JSON(http.StatusOK, statusOK(fmt.Sprintf("reservation %d created", created.ID)))
}

func (s *Server) handleDeleteReservation(c *gin.Context) {
	var req struct {
		ReservationID int `json:"reservation_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, statusError("malformed request body"))
		return
	}

	if !s.store.deleteReservation(req.ReservationID) {
		c.JSON(http.StatusOK, statusError(fmt.Sprintf("reservation %d not found", req.ReservationID)))
		return
	}
	c.JSON(http.StatusOK, statusOK(fmt.Sprintf("reservation %d deleted", req.ReservationID)))
}

// previewGIF returns a minimal single pixel GIF.
func previewGIF() []byte {
	return []byte{
		'G', 'I', 'F', '8', '9', 'a',
		0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00,
		0x00, 0x00, 0x00, 0xff, 0xff, 0xff,
		0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00,
		0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
	}
}

// placeholderFITS builds a minimal FITS header block so downloads look
// like real instrument output.
func placeholderFITS(filename string) []byte {
	card := func(s string) string {
		return fmt.Sprintf("%-80s", s)
	}

	header := card("SIMPLE  =                    T") +
		card("BITPIX  =                    8") +
		card("NAXIS   =                    0") +
		card(fmt.Sprintf("ORIGIN  = '%s'", filename)) +
		card("END")
	// FITS blocks are 2880 bytes.
	for len(header)%2880 != 0 {
		header += " "
	}
	return []byte(header)
}
