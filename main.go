package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dariah-contrib/config"
	"dariah-contrib/models"
	"dariah-contrib/services"
	"dariah-contrib/storage"
	"dariah-contrib/workflow"
)

var commandsTotal *prometheus.CounterVec

func init() {
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_commands_total",
			Help: "Über HTTP ausgeführte Workflow-Kommandos, nach Kommando und Ausgang.",
		},
		[]string{"command", "outcome"},
	)
	prometheus.MustRegister(commandsTotal)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// identityMiddleware löst den Akteur über das Eppn aus dem Auth-Header auf.
// Ohne Header oder bei unbekanntem Eppn läuft die Anfrage als public weiter;
// verweigert wird erst an den Permission-Checks, nicht hier.
func identityMiddleware(cfg *config.Config, store *storage.RecordStore, logging *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		eppn := c.GetHeader(cfg.AuthHeader)
		if eppn != "" {
			user, err := store.UserByEppn(c.Request.Context(), eppn)
			if err == nil {
				c.Set("user", user)
			} else if !errors.Is(err, workflow.ErrNotFound) {
				logging.Error("Identity lookup failed", zap.String("eppn", eppn), zap.Error(err))
			}
		}
		c.Next()
	}
}

// currentUser liefert den aufgelösten Akteur oder nil (public).
func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get("user"); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

func currentRole(c *gin.Context) string {
	if u := currentUser(c); u != nil {
		return u.Role
	}
	return workflow.RolePublic
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// writeWorkflowError mappt Engine-Fehler auf HTTP-Status.
func writeWorkflowError(c *gin.Context, logging *zap.Logger, err error) {
	var cfgErr *workflow.ConfigError
	var fieldErr *workflow.UnsupportedFieldError
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, workflow.ErrNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": cfgErr.Error()})
	case errors.As(err, &fieldErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": fieldErr.Error()})
	default:
		logging.Error("Workflow operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// commandKind ordnet jedem Kommando die Record-Art zu, auf der es geprüft wird.
func commandKind(command workflow.Action) (workflow.RecordKind, bool) {
	switch command {
	case workflow.CmdStartAssessment,
		workflow.CmdSelectContrib, workflow.CmdDeselectContrib, workflow.CmdUnselectContrib:
		return workflow.KindContrib, true
	case workflow.CmdSubmitAssessment, workflow.CmdResubmitAssessment,
		workflow.CmdSubmitRevised, workflow.CmdWithdrawAssessment,
		workflow.CmdStartReview:
		return workflow.KindAssessment, true
	case workflow.CmdReviewAccept, workflow.CmdReviewReject, workflow.CmdReviewRevise:
		return workflow.KindReview, true
	}
	return "", false
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to contribution database.")

	// Auto-Migration
	logging.Info("Running database auto-migration...")
	db.AutoMigrate(
		&models.User{},
		&models.ContribType{},
		&models.Criterion{},
		&models.PermissionRule{},
		&models.Contribution{},
		&models.Assessment{},
		&models.CriteriaEntry{},
		&models.Review{},
		&models.ReviewEntry{},
		&models.WorkflowState{},
	)

	// Seeding
	seedContribTypes(db, logging)
	seedCriteria(db, logging)
	seedPermissionRules(db, logging)
	seedRootUser(db, logging)

	store := storage.NewRecordStore(db)

	// Permission-Matrix aus den Referenzdaten laden.
	rules, err := store.PermissionRules(context.Background())
	if err != nil {
		logging.Fatal("Failed to load permission rules", zap.Error(err))
	}
	matrixRules := make([]workflow.Rule, 0, len(rules))
	for _, r := range rules {
		matrixRules = append(matrixRules, workflow.Rule{
			Role:   r.Role,
			Kind:   workflow.RecordKind(r.Kind),
			Stage:  workflow.Stage(r.Stage),
			Action: workflow.Action(r.Action),
			Field:  r.Field,
		})
	}
	if len(matrixRules) == 0 {
		logging.Warn("No permission rules in database, falling back to defaults")
		matrixRules = workflow.DefaultRules()
	}
	matrix := workflow.NewMatrix(matrixRules)

	engine := workflow.NewEngine(store, matrix, workflow.DefaultVocabulary(), logging)
	if cfg.DecisionDelayHours > 0 {
		engine.SetDecisionDelay(time.Duration(cfg.DecisionDelayHours) * time.Hour)
	}

	// Setup Export (optional)
	var exportService *services.ExportService
	if cfg.ExportEnabled() {
		s3Client, err := storage.NewS3Client(context.Background(), cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		exportService = services.NewExportService(cfg, engine, s3Client, logging)
		logging.Info("S3 export enabled", zap.String("bucket", cfg.StratoS3Bucket))
	} else {
		logging.Info("S3 export disabled (no STRATO_S3_URL configured)")
	}

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.Use(identityMiddleware(cfg, store, logging))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupContribRoutes(router, engine, store, matrix, logging)
	setupAssessmentRoutes(router, engine, store, logging)
	setupCriteriaEntryRoutes(router, engine, logging)
	setupReferenceRoutes(router, db, logging)
	setupWorkflowRoutes(router, engine, exportService, logging)

	// Setup Cron: nächtlicher Rebuild aller Snapshots, danach Archiv-Export.
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled workflow rebuild...")
		count, err := engine.RebuildAll(context.Background())
		if err != nil {
			logging.Error("Cron rebuild failed", zap.Error(err))
			return
		}
		logging.Info("Cron rebuild completed", zap.Int("snapshots", count))
		if exportService != nil {
			n, err := exportService.ExportSelected(context.Background(), store)
			if err != nil {
				logging.Error("Cron export failed", zap.Error(err))
				return
			}
			logging.Info("Cron export completed", zap.Int("bundles", n))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// redactContribution schwärzt Felder, die für die Rolle nicht sichtbar sind.
// Die Records selbst bleiben unverändert, nur die Antwort wird gefiltert.
func redactContribution(c *models.Contribution, matrix *workflow.Matrix, role string) {
	if matrix.FieldView(role, workflow.KindContrib, "contact_email") == workflow.FieldHidden {
		c.ContactEmail = ""
	}
	if matrix.FieldView(role, workflow.KindContrib, "contact_person") == workflow.FieldHidden {
		c.ContactPerson = ""
	}
}

func setupContribRoutes(router *gin.Engine, engine *workflow.Engine, store *storage.RecordStore, matrix *workflow.Matrix, logging *zap.Logger) {
	rg := router.Group("/contributions")

	rg.GET("/", func(c *gin.Context) {
		contribs, err := store.Contributions(c.Request.Context())
		if err != nil {
			logging.Error("Database query for contributions failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		role := currentRole(c)
		for i := range contribs {
			redactContribution(&contribs[i], matrix, role)
		}
		c.JSON(http.StatusOK, contribs)
	})

	rg.POST("/", func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		var contrib models.Contribution
		if err := c.ShouldBindJSON(&contrib); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if contrib.Title == "" || contrib.Type == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title and type are required"})
			return
		}
		contrib.ID = 0
		contrib.CreatorID = user.ID
		contrib.Selected = nil
		contrib.DateDecided = nil
		// Vorbelegung aus der Identität des Akteurs.
		if contrib.Country == "" {
			contrib.Country = user.Country
		}
		if contrib.Year == 0 {
			contrib.Year = time.Now().Year()
		}
		if err := store.InsertContribution(c.Request.Context(), &contrib); err != nil {
			logging.Error("Failed to create contribution", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create contribution"})
			return
		}
		if err := engine.Adjust(c.Request.Context(), contrib.ID, true); err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		c.JSON(http.StatusCreated, contrib)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		contrib, err := store.ContributionByID(c.Request.Context(), id)
		if err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		redactContribution(contrib, matrix, currentRole(c))
		c.JSON(http.StatusOK, contrib)
	})

	rg.PUT("/:id", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		item, err := engine.Item(c.Request.Context(), id, currentUser(c))
		if err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		if !item.Permission(workflow.KindContrib, workflow.ActionEdit) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
			return
		}
		contrib, err := store.ContributionByID(c.Request.Context(), id)
		if err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		var upd struct {
			Type          *string `json:"type"`
			Title         *string `json:"title"`
			Year          *int    `json:"year"`
			Country       *string `json:"country"`
			ContactPerson *string `json:"contact_person"`
			ContactEmail  *string `json:"contact_email"`
		}
		if err := c.ShouldBindJSON(&upd); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if upd.Type != nil {
			contrib.Type = *upd.Type
		}
		if upd.Title != nil {
			contrib.Title = *upd.Title
		}
		if upd.Year != nil {
			contrib.Year = *upd.Year
		}
		if upd.Country != nil {
			contrib.Country = *upd.Country
		}
		if upd.ContactPerson != nil {
			contrib.ContactPerson = *upd.ContactPerson
		}
		if upd.ContactEmail != nil {
			contrib.ContactEmail = *upd.ContactEmail
		}
		if err := store.UpdateContribution(c.Request.Context(), contrib); err != nil {
			logging.Error("Failed to update contribution", zap.Uint("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update contribution"})
			return
		}
		// Ein Typwechsel kann das gültige Assessment entwerten; der Snapshot
		// zieht sofort nach.
		if err := engine.Adjust(c.Request.Context(), id, false); err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, contrib)
	})

	// Workflow-Kommandos: Stages werden nie gesetzt, nur Kommandos ausgeführt.
	rg.POST("/:id/command/:command", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		command := workflow.Action(c.Param("command"))
		kind, ok := commandKind(command)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown command"})
			return
		}
		user := currentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if err := engine.DoCommand(c.Request.Context(), user, id, kind, command); err != nil {
			commandsTotal.WithLabelValues(string(command), "denied").Inc()
			writeWorkflowError(c, logging, err)
			return
		}
		commandsTotal.WithLabelValues(string(command), "ok").Inc()
		item, err := engine.Item(c.Request.Context(), id, user)
		if err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, item.Status(kind, item.MyKind()))
	})

	// StartAssessment separat: die Antwort enthält das angelegte Assessment,
	// bei unvollständigem Batch zusätzlich einen Reparatur-Hinweis.
	rg.POST("/:id/assessment", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		user := currentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		a, err := engine.StartAssessment(c.Request.Context(), user, id)
		var partial *workflow.PartialWriteError
		switch {
		case err == nil:
			commandsTotal.WithLabelValues(string(workflow.CmdStartAssessment), "ok").Inc()
			c.JSON(http.StatusCreated, a)
		case errors.As(err, &partial):
			commandsTotal.WithLabelValues(string(workflow.CmdStartAssessment), "partial").Inc()
			logging.Warn("Assessment created with incomplete criteria batch",
				zap.Uint("assessment", partial.AssessmentID),
				zap.Int("want", partial.Want), zap.Int("got", partial.Got))
			c.JSON(http.StatusCreated, gin.H{
				"assessment": a,
				"warning":    partial.Error(),
				"repair":     "/assessments/" + strconv.FormatUint(uint64(a.ID), 10) + "/repair",
			})
		default:
			commandsTotal.WithLabelValues(string(workflow.CmdStartAssessment), "denied").Inc()
			writeWorkflowError(c, logging, err)
		}
	})

	rg.GET("/:id/status", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		item, err := engine.Item(c.Request.Context(), id, currentUser(c))
		if err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		kind := workflow.RecordKind(c.DefaultQuery("kind", string(workflow.KindContrib)))
		reviewer := workflow.ReviewerKind(c.Query("reviewer"))
		c.JSON(http.StatusOK, item.Status(kind, reviewer))
	})

	rg.GET("/:id/permission", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		item, err := engine.Item(c.Request.Context(), id, currentUser(c))
		if err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		kind := workflow.RecordKind(c.DefaultQuery("kind", string(workflow.KindContrib)))
		action := workflow.Action(c.Query("action"))
		c.JSON(http.StatusOK, gin.H{
			"kind":    kind,
			"action":  action,
			"allowed": item.Permission(kind, action),
		})
	})

	rg.GET("/:id/info", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		item, err := engine.Item(c.Request.Context(), id, currentUser(c))
		if err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		kind := workflow.RecordKind(c.DefaultQuery("kind", string(workflow.KindContrib)))
		reviewer := workflow.ReviewerKind(c.Query("reviewer"))
		fields := strings.Split(c.Query("fields"), ",")
		if len(fields) == 1 && fields[0] == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fields parameter is required"})
			return
		}
		values, err := item.Info(kind, reviewer, fields...)
		if err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		result := gin.H{}
		for i, f := range fields {
			result[f] = values[i]
		}
		c.JSON(http.StatusOK, result)
	})
}

func setupAssessmentRoutes(router *gin.Engine, engine *workflow.Engine, store *storage.RecordStore, logging *zap.Logger) {
	rg := router.Group("/assessments")

	rg.GET("/:id/entries", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		if _, err := store.AssessmentByID(c.Request.Context(), id); err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		entries, err := store.CriteriaEntriesByAssessment(c.Request.Context(), id)
		if err != nil {
			logging.Error("Database query for criteria entries failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, entries)
	})

	// Bewertung per (Assessment, Seq): die Seq ist auch bei einem
	// lückenhaften Batch ein stabiler Anker.
	rg.POST("/:id/criteria/:seq", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		seq, err := strconv.Atoi(c.Param("seq"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid seq"})
			return
		}
		entries, err := store.CriteriaEntriesByAssessment(c.Request.Context(), id)
		if err != nil {
			logging.Error("Database query for criteria entries failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		var target *models.CriteriaEntry
		for i := range entries {
			if entries[i].Seq == seq {
				target = &entries[i]
				break
			}
		}
		if target == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no entry for this seq"})
			return
		}
		var req struct {
			Score    *int    `json:"score"`
			Evidence *string `json:"evidence"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := engine.UpdateCriteriaEntry(c.Request.Context(), currentUser(c), target.ID, req.Score, req.Evidence); err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": target.ID})
	})

	rg.POST("/:id/repair", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		added, err := engine.RepairAssessment(c.Request.Context(), currentUser(c), id)
		if err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"added": added})
	})

	rg.GET("/:id/reviews", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		reviews, err := engine.ClassifiedReviews(c.Request.Context(), id)
		if err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, reviews)
	})

	// Reviewer-Zuteilung; ein externer Verwaltungsschritt, kein Workflow-
	// Kommando. Nur Superuser.
	rg.PUT("/:id/reviewers", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		user := currentUser(c)
		if user == nil || !workflow.Superuser(user.Role) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
			return
		}
		a, err := store.AssessmentByID(c.Request.Context(), id)
		if err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		var req struct {
			Expert *uint `json:"expert"`
			Final  *uint `json:"final"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		a.ReviewerExpertID = req.Expert
		a.ReviewerFinalID = req.Final
		if err := store.UpdateAssessment(c.Request.Context(), a); err != nil {
			logging.Error("Failed to update reviewer assignment", zap.Uint("assessment", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update assignment"})
			return
		}
		// Reviews abgelöster Reviewer sind ab jetzt verwaist; der Snapshot
		// folgt der neuen Zuteilung.
		if err := engine.Adjust(c.Request.Context(), a.ContributionID, false); err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, a)
	})
}

func setupCriteriaEntryRoutes(router *gin.Engine, engine *workflow.Engine, logging *zap.Logger) {
	rg := router.Group("/criteria-entries")

	rg.PUT("/:id", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var req struct {
			Score    *int    `json:"score"`
			Evidence *string `json:"evidence"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := engine.UpdateCriteriaEntry(c.Request.Context(), currentUser(c), id, req.Score, req.Evidence); err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": id})
	})

	rg.GET("/:id/review-entries", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		entries, err := engine.ClassifiedReviewEntries(c.Request.Context(), id)
		if err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	})

	rg.POST("/:id/review-entries", func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		user := currentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		var req struct {
			Comment string `json:"comment" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "comment is required"})
			return
		}
		entry, err := engine.AddReviewEntry(c.Request.Context(), user, id, req.Comment)
		if err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	})
}

func setupReferenceRoutes(router *gin.Engine, db *gorm.DB, logging *zap.Logger) {
	rg := router.Group("/contrib-types")

	rg.GET("/", func(c *gin.Context) {
		var types []models.ContribType
		if err := db.Find(&types).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, types)
	})

	rg.GET("/:name/criteria", func(c *gin.Context) {
		var criteria []models.Criterion
		if err := db.Where("contrib_type = ?", c.Param("name")).Order("seq").Find(&criteria).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, criteria)
	})
}

func setupWorkflowRoutes(router *gin.Engine, engine *workflow.Engine, exportService *services.ExportService, logging *zap.Logger) {
	rg := router.Group("/workflow")

	rg.POST("/rebuild", func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || !workflow.Superuser(user.Role) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
			return
		}
		count, err := engine.RebuildAll(c.Request.Context())
		if err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rebuilt": count})
	})

	rg.POST("/export/:id", func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || !workflow.Superuser(user.Role) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
			return
		}
		if exportService == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export is not configured"})
			return
		}
		id, ok := paramID(c)
		if !ok {
			return
		}
		link, err := exportService.ExportContribution(c.Request.Context(), id)
		if err != nil {
			writeWorkflowError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"link": link})
	})
}
