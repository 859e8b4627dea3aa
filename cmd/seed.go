package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vendorhub/vendor-engage/internal/config"
	"github.com/vendorhub/vendor-engage/internal/db"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo vendors and contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns: cfg.MySQL.MaxOpenConns,
			MaxIdleConns: cfg.MySQL.MaxIdleConns,
			PingTimeout:  cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		vendors := []struct {
			name, phone, openTime, closeTime, days string
			consent                                bool
		}{
			{"Sharma Chaat Corner", "+919800000001", "9:30 AM", "9:00 PM", "1,2,3,4,5,6", true},
			{"Devi Fruit Cart", "+919800000002", "08:00", "20:00", "0,1,2,3,4,5,6", true},
			{"Khan Tea Stall", "+919800000003", "7:15", "22:00", "1,2,3,4,5", true},
			{"Old Market Tailors", "+919800000004", "10:00 AM", "7:00 PM", "1,3,5", false},
		}

		for _, v := range vendors {
			_, err := sqlDB.Exec(`
				INSERT INTO vendors (name, phone, whatsapp_consent, open_time, close_time, open_days)
				VALUES (?, ?, ?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE name = VALUES(name)
			`, v.name, v.phone, v.consent, v.openTime, v.closeTime, v.days)
			if err != nil {
				return fmt.Errorf("seed vendor %s: %w", v.name, err)
			}

			_, err = sqlDB.Exec(`
				INSERT INTO contacts (phone, last_seen)
				VALUES (?, ?)
				ON DUPLICATE KEY UPDATE last_seen = VALUES(last_seen)
			`, v.phone, time.Now().AddDate(0, 0, -7))
			if err != nil {
				return fmt.Errorf("seed contact %s: %w", v.phone, err)
			}
		}

		fmt.Printf(">> Seeded %d vendors\n", len(vendors))
		return nil
	},
}
