package directory

import (
	"context"
	"errors"

	"github.com/dkeye/Multiview/internal/domain"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type seedTeam struct {
	team     string
	category string
	members  []string
}

var defaultSeed = []seedTeam{
	{team: "Equipo Alfa", category: "Desarrollo Frontend", members: []string{"p1.alfa@email.com", "p2.alfa@email.com"}},
	{team: "Equipo Beta", category: "Desarrollo Backend", members: []string{"p1.beta@email.com", "p2.beta@email.com"}},
}

const seedAdminEmail = "admin@asdu.com"

// Seed creates the development directory: one admin and two teams of participants.
// Existing rows are kept, so running it twice is harmless.
func Seed(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(tx, User{Email: seedAdminEmail, DisplayName: "Admin", Role: string(domain.PrivilegeAdmin)}); err != nil {
			return err
		}
		for _, st := range defaultSeed {
			category := Category{Name: st.category}
			if err := tx.Where(Category{Name: st.category}).FirstOrCreate(&category).Error; err != nil {
				return err
			}
			team := Team{Name: st.team, CategoryID: &category.ID}
			if err := tx.Where(Team{Name: st.team}).FirstOrCreate(&team).Error; err != nil {
				return err
			}
			for _, email := range st.members {
				if err := ensureUser(tx, User{Email: email, Role: string(domain.PrivilegeParticipant), TeamID: &team.ID}); err != nil {
					return err
				}
			}
		}
		log.Info().Str("module", "directory").Msg("seed completed")
		return nil
	})
}

func ensureUser(tx *gorm.DB, u User) error {
	var existing User
	err := tx.Where("email = ?", u.Email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return tx.Create(&u).Error
}
