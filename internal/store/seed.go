package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"envanter/internal/models"
)

// Demo accounts created by Seed.
const (
	SeedAdminEmail    = "admin@example.com"
	SeedAdminUsername = "admin"
	SeedAdminPassword = "admin123"

	SeedUserEmail    = "depo@example.com"
	SeedUserUsername = "depo"
	SeedUserPassword = "depo123"
)

type seedItem struct {
	name, brand, model, category, location, serial, barcode, description string
	status                                                               models.ItemStatus
	quantity                                                             int
}

type seedMovement struct {
	barcode     string
	typ         models.MovementType
	quantity    int
	date        string
	description string
	location    string
}

var seedCategories = []string{
	"Ses Sistemleri", "Işık Sistemleri", "Görüntü Sistemleri", "Kablolar",
	"Mikserler", "Mikrofonlar", "Projektörler",
}

var seedLocations = []string{"Merkez", "Otel A", "Otel B", "Servis"}

var seedItems = []seedItem{
	{"Profesyonel Mikrofon", "Shure", "SM58", "Mikrofonlar", "Merkez", "SHR-1234567", "MIKSHUSM58-001", "Profesyonel sahne mikrofonu", models.StatusInStock, 2},
	{"LED Par Işık", "Stairville", "PAR64", "Işık Sistemleri", "Merkez", "STV-98765", "ISISTVPAR-002", "RGB LED sahne ışığı", models.StatusInStock, 6},
	{"Aktif Hoparlör", "JBL", "EON615", "Ses Sistemleri", "Otel A", "JBL-7654321", "SESJBLEON-003", `1000W 15" aktif hoparlör`, models.StatusCheckedOut, 4},
	{"HDMI Projeksiyon Cihazı", "Epson", "EB-X41", "Görüntü Sistemleri", "Otel B", "EPS-112233", "GOREPSON-004", "3600 lümen XGA projeksiyon", models.StatusRented, 2},
	{"Dijital Mikser", "Behringer", "X32", "Mikserler", "Merkez", "BHR-445566", "MIKBEHX32-005", "32 kanallı dijital mikser", models.StatusInService, 1},
	{"DMX Kontrol Ünitesi", "American DJ", "DMX Operator", "Işık Sistemleri", "Merkez", "ADJ-998877", "ISIADJDMX-006", "Profesyonel DMX ışık kontrol ünitesi", models.StatusInStock, 3},
}

var seedMovements = []seedMovement{
	{"SESJBLEON-003", models.MovementOut, 2, "2024-03-01", "Otel A etkinliği için çıkış yapıldı", "Otel A"},
	{"GOREPSON-004", models.MovementOut, 1, "2024-03-05", "Otel B konferans salonu için kiralama", "Otel B"},
	{"MIKBEHX32-005", models.MovementOut, 1, "2024-03-10", "Arıza tespiti için servise gönderildi", "Servis"},
	{"MIKSHUSM58-001", models.MovementIn, 3, "2024-03-15", "Yeni stok alımı", "Merkez"},
	{"ISISTVPAR-002", models.MovementIn, 5, "2024-03-20", "Yeni stok alımı", "Merkez"},
}

// Seed fills st with the demo accounts, reference data, items and movements.
// Movements go through CreateMovement so quantities end up consistent. A
// store that already has the admin account is left untouched.
func Seed(ctx context.Context, st Store) error {
	if _, err := st.GetUserByEmail(ctx, SeedAdminEmail); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("check seed: %w", err)
	}

	adminName := "Admin Kullanıcı"
	admin, err := seedUser(ctx, st, SeedAdminEmail, SeedAdminUsername, SeedAdminPassword, &adminName, models.RoleAdmin)
	if err != nil {
		return err
	}
	userName := "Depo Sorumlusu"
	if _, err := seedUser(ctx, st, SeedUserEmail, SeedUserUsername, SeedUserPassword, &userName, models.RoleUser); err != nil {
		return err
	}

	categories := make(map[string]string, len(seedCategories))
	for _, name := range seedCategories {
		c, err := st.CreateCategory(ctx, name)
		if err != nil {
			return fmt.Errorf("seed category %q: %w", name, err)
		}
		categories[name] = c.ID
	}
	locations := make(map[string]string, len(seedLocations))
	for _, name := range seedLocations {
		l, err := st.CreateLocation(ctx, name)
		if err != nil {
			return fmt.Errorf("seed location %q: %w", name, err)
		}
		locations[name] = l.ID
	}

	items := make(map[string]string, len(seedItems))
	for _, si := range seedItems {
		it, err := st.CreateItem(ctx, models.CreateItemRequest{
			Name:         si.name,
			Brand:        si.brand,
			Model:        si.model,
			CategoryID:   categories[si.category],
			Status:       si.status,
			LocationID:   locations[si.location],
			SerialNumber: si.serial,
			Barcode:      si.barcode,
			Description:  si.description,
			Quantity:     si.quantity,
			CreatedBy:    admin.ID,
		})
		if err != nil {
			return fmt.Errorf("seed item %q: %w", si.name, err)
		}
		items[si.barcode] = it.ID
	}

	for _, sm := range seedMovements {
		date, err := time.Parse(time.DateOnly, sm.date)
		if err != nil {
			return err
		}
		_, err = st.CreateMovement(ctx, models.CreateMovementRequest{
			ItemID:      items[sm.barcode],
			Type:        sm.typ,
			Quantity:    sm.quantity,
			Date:        &date,
			Description: sm.description,
			LocationID:  locations[sm.location],
			Actor:       admin.ID,
		})
		if err != nil {
			return fmt.Errorf("seed movement for %s: %w", sm.barcode, err)
		}
	}
	return nil
}

func seedUser(ctx context.Context, st Store, email, username, password string, fullName *string, role string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u, err := st.CreateUser(ctx, models.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         role,
	})
	if err != nil {
		return nil, fmt.Errorf("seed user %s: %w", email, err)
	}
	return u, nil
}
