package main

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"dariah-contrib/models"
	"dariah-contrib/workflow"
)

func seedContribTypes(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.ContribType{}).Count(&count)
	if count > 0 {
		return
	}
	types := []models.ContribType{
		{Name: "service", MainType: "main"},
		{Name: "software", MainType: "main"},
		{Name: "data", MainType: "main"},
		{Name: "training", MainType: "main"},
		{Name: "activity", MainType: "main"},
	}
	if err := db.Create(&types).Error; err != nil {
		logger.Warn("Failed to seed contribution types", zap.Error(err))
	} else {
		logger.Info("Contribution types seeded.")
	}
}

func seedCriteria(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.Criterion{}).Count(&count)
	if count > 0 {
		return
	}
	criteria := []models.Criterion{
		{ContribType: "service", Seq: 0, Title: "Relevance for the research community", MaxScore: 4},
		{ContribType: "service", Seq: 1, Title: "Documentation quality", MaxScore: 4},
		{ContribType: "service", Seq: 2, Title: "Interoperability and standards", MaxScore: 4},
		{ContribType: "service", Seq: 3, Title: "Sustainability of operation", MaxScore: 4},

		{ContribType: "software", Seq: 0, Title: "Openness of the source code", MaxScore: 4},
		{ContribType: "software", Seq: 1, Title: "Maturity and maintenance", MaxScore: 4},

		{ContribType: "data", Seq: 0, Title: "Findability and accessibility", MaxScore: 4},
		{ContribType: "data", Seq: 1, Title: "Reusability and licensing", MaxScore: 4},
		{ContribType: "data", Seq: 2, Title: "Metadata quality", MaxScore: 4},

		{ContribType: "training", Seq: 0, Title: "Didactic quality", MaxScore: 4},
		{ContribType: "training", Seq: 1, Title: "Reusability of the material", MaxScore: 4},

		{ContribType: "activity", Seq: 0, Title: "Community reach", MaxScore: 4},
	}
	if err := db.Create(&criteria).Error; err != nil {
		logger.Warn("Failed to seed criteria", zap.Error(err))
	} else {
		logger.Info("Criteria seeded.")
	}
}

func seedPermissionRules(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.PermissionRule{}).Count(&count)
	if count > 0 {
		return
	}
	defaults := workflow.DefaultRules()
	rules := make([]models.PermissionRule, 0, len(defaults))
	for _, r := range defaults {
		rules = append(rules, models.PermissionRule{
			Role:   r.Role,
			Kind:   string(r.Kind),
			Stage:  string(r.Stage),
			Action: string(r.Action),
			Field:  r.Field,
		})
	}
	if err := db.Create(&rules).Error; err != nil {
		logger.Warn("Failed to seed permission rules", zap.Error(err))
	} else {
		logger.Info("Permission rules seeded.")
	}
}

func seedRootUser(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.User{}).Count(&count)
	if count > 0 {
		return
	}
	root := models.User{
		Eppn: "root@dariah.eu",
		Name: "Initial Administrator",
		Role: workflow.RoleRoot,
	}
	if err := db.Create(&root).Error; err != nil {
		logger.Warn("Failed to seed root user", zap.Error(err))
	} else {
		logger.Info("Root user seeded.")
	}
}
