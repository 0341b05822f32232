package migration

import (
	"strings"

	"github.com/smallbiznis/portal/internal/config"
	profiledomain "github.com/smallbiznis/portal/internal/profile/domain"
	usagedomain "github.com/smallbiznis/portal/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.DBRunMigrations {
			log.Info("migrations disabled")
			return nil
		}

		// Versioned SQL targets postgres; other dialects are dev setups.
		if dbType := strings.ToLower(strings.TrimSpace(cfg.DBType)); dbType != "postgres" && dbType != "" {
			log.Info("auto-migrating schema", zap.String("type", dbType))
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)

// AutoMigrate creates the portal tables from the gorm models.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&usagedomain.UsageLimit{},
		&usagedomain.DataUsage{},
		&profiledomain.UserProfile{},
	)
}
