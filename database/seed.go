package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"home-service-server/models"
)

type demoServiceman struct {
	name   string
	phone  string
	lat    float64
	lng    float64
	skills []string
}

var demoServicemen = []demoServiceman{
	{"Ravi Kumar", "+919800000001", 12.9716, 77.5946, []string{"plumbing", "water_heater"}},
	{"Anil Sharma", "+919800000002", 12.9352, 77.6245, []string{"electrical"}},
	{"Suresh Rao", "+919800000003", 13.0358, 77.5970, []string{"painting", "carpentry"}},
	{"Imran Khan", "+919800000004", 19.0760, 72.8777, []string{"ac_repair", "appliance_repair"}},
	{"Deepak Verma", "+919800000005", 28.6139, 77.2090, []string{"plumbing", "electrical"}},
	{"Joseph Mathew", "+919800000006", 9.9312, 76.2673, nil},
}

// SeedServicemen inserts demo servicemen for local development. Existing names are
// left untouched so the command can be re-run.
func SeedServicemen(ctx context.Context, db *gorm.DB) (int, error) {
	created := 0
	now := time.Now().UTC()

	for _, d := range demoServicemen {
		var existing models.Serviceman
		err := db.WithContext(ctx).Where("full_name = ?", d.name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, fmt.Errorf("look up serviceman %s: %w", d.name, err)
		}

		lat, lng := d.lat, d.lng
		sm := &models.Serviceman{
			FullName:          d.name,
			PhoneNumber:       d.phone,
			Latitude:          &lat,
			Longitude:         &lng,
			LocationUpdatedAt: &now,
			SkillTags:         models.NewSkillTags(d.skills...),
		}
		if err := db.WithContext(ctx).Create(sm).Error; err != nil {
			return created, fmt.Errorf("create serviceman %s: %w", d.name, err)
		}
		created++
	}
	return created, nil
}
