package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedAdmin(db)
	catIDs := seedCategories(db)
	addonIDs := seedAddOns(db)
	seedItems(db, catIDs, addonIDs)
	zoneIDs := seedZones(db)
	seedSlots(db, zoneIDs)
	seedCoupons(db)

	log.Println("Seeding completed successfully!")
}

func seedAdmin(db *sql.DB) {
	fmt.Println("Seeding Admin...")
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}
	_, err = db.Exec(`
		INSERT INTO users (phone, name, role, email, password_hash)
		VALUES ('+989000000001', 'Sofreh Admin', 'admin', 'admin@sofreh.ir', $1)
		ON CONFLICT (phone) DO UPDATE SET password_hash = EXCLUDED.password_hash;
	`, hash)
	if err != nil {
		log.Printf("Failed to seed admin: %v", err)
	}
}

func seedCategories(db *sql.DB) map[string]string {
	categories := []struct {
		Slug   string
		Name   string
		NameFa string
		Sort   int
	}{
		{"kebabs", "Kebabs", "کباب‌ها", 1},
		{"stews", "Stews", "خورش‌ها", 2},
		{"rice-dishes", "Rice Dishes", "پلوها", 3},
		{"appetizers", "Appetizers", "پیش‌غذاها", 4},
		{"drinks", "Drinks", "نوشیدنی‌ها", 5},
		{"desserts", "Desserts", "دسرها", 6},
	}

	fmt.Println("Seeding Categories...")
	ids := make(map[string]string)
	for _, c := range categories {
		var id string
		err := db.QueryRow(`
			INSERT INTO categories (slug, name, name_fa, sort_order)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, name_fa = EXCLUDED.name_fa, sort_order = EXCLUDED.sort_order
			RETURNING id;
		`, c.Slug, c.Name, c.NameFa, c.Sort).Scan(&id)
		if err != nil {
			log.Printf("Failed to upsert category %s: %v", c.Slug, err)
			continue
		}
		ids[c.Slug] = id
	}
	return ids
}

func seedAddOns(db *sql.DB) map[string]string {
	addons := []struct {
		Name   string
		NameFa string
		Price  int64
	}{
		{"Grilled Tomato", "گوجه کبابی", 15000},
		{"Extra Saffron Rice", "برنج زعفرانی اضافه", 45000},
		{"Yogurt Drink", "دوغ", 20000},
		{"Fresh Herbs & Onion", "سبزی و پیاز", 12000},
		{"Shirazi Salad", "سالاد شیرازی", 35000},
	}

	fmt.Println("Seeding Add-ons...")
	ids := make(map[string]string)
	for _, a := range addons {
		var id string
		// No natural key on addons, match by name to stay idempotent.
		err := db.QueryRow("SELECT id FROM addons WHERE name = $1", a.Name).Scan(&id)
		if err == sql.ErrNoRows {
			err = db.QueryRow(`
				INSERT INTO addons (name, name_fa, price) VALUES ($1, $2, $3) RETURNING id;
			`, a.Name, a.NameFa, a.Price).Scan(&id)
		}
		if err != nil {
			log.Printf("Failed to seed addon %s: %v", a.Name, err)
			continue
		}
		ids[a.Name] = id
	}
	return ids
}

type variant struct {
	Name       string `json:"name"`
	PriceDelta int64  `json:"priceDelta"`
}

func seedItems(db *sql.DB, catIDs, addonIDs map[string]string) {
	items := []struct {
		Slug     string
		Name     string
		NameFa   string
		Desc     string
		Price    int64
		Category string
		Variants []variant
		AddOns   []string
	}{
		{"koobideh", "Koobideh Kebab", "کباب کوبیده", "Two skewers of seasoned ground lamb over saffron rice.", 185000, "kebabs",
			[]variant{{"single skewer", -60000}, {"double", 0}, {"triple", 75000}},
			[]string{"Grilled Tomato", "Yogurt Drink", "Fresh Herbs & Onion"}},
		{"joojeh", "Joojeh Kebab", "جوجه کباب", "Saffron-marinated chicken kebab with grilled tomato.", 210000, "kebabs",
			[]variant{{"with bone", 20000}, {"boneless", 0}},
			[]string{"Grilled Tomato", "Extra Saffron Rice", "Yogurt Drink"}},
		{"ghormeh-sabzi", "Ghormeh Sabzi", "قورمه سبزی", "Herb stew with lamb, kidney beans and dried lime.", 165000, "stews",
			nil,
			[]string{"Extra Saffron Rice", "Shirazi Salad"}},
		{"gheymeh", "Gheymeh", "قیمه", "Split-pea and lamb stew topped with crispy potatoes.", 155000, "stews",
			nil,
			[]string{"Extra Saffron Rice"}},
		{"zereshk-polo", "Zereshk Polo ba Morgh", "زرشک پلو با مرغ", "Barberry rice with braised saffron chicken.", 175000, "rice-dishes",
			[]variant{{"chicken breast", 0}, {"chicken thigh", -10000}},
			[]string{"Shirazi Salad", "Yogurt Drink"}},
		{"mirza-ghasemi", "Mirza Ghasemi", "میرزا قاسمی", "Smoky eggplant and tomato dip with garlic and egg.", 95000, "appetizers",
			nil,
			nil},
		{"mast-o-khiar", "Mast-o-Khiar", "ماست و خیار", "Yogurt with cucumber, mint and rose petals.", 55000, "appetizers",
			nil,
			nil},
		{"doogh", "Doogh", "دوغ", "Sparkling yogurt drink with dried mint.", 25000, "drinks",
			[]variant{{"glass", 0}, {"bottle", 15000}},
			nil},
		{"saffron-ice-cream", "Saffron Ice Cream", "بستنی سنتی", "Traditional saffron ice cream with pistachio.", 65000, "desserts",
			nil,
			nil},
	}

	fmt.Println("Seeding Items...")
	for _, it := range items {
		catID, ok := catIDs[it.Category]
		if !ok {
			log.Printf("Missing category ID for %s", it.Category)
			continue
		}
		variantsJSON, err := json.Marshal(it.Variants)
		if err != nil {
			log.Printf("Failed to marshal variants for %s: %v", it.Slug, err)
			continue
		}
		addonRefs := make([]string, 0, len(it.AddOns))
		for _, name := range it.AddOns {
			if id, ok := addonIDs[name]; ok {
				addonRefs = append(addonRefs, id)
			}
		}
		_, err = db.Exec(`
			INSERT INTO items (slug, name, name_fa, description, price, category_ids, variants, addon_ids, available)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true)
			ON CONFLICT (slug) DO UPDATE SET
				name = EXCLUDED.name,
				name_fa = EXCLUDED.name_fa,
				description = EXCLUDED.description,
				price = EXCLUDED.price,
				category_ids = EXCLUDED.category_ids,
				variants = EXCLUDED.variants,
				addon_ids = EXCLUDED.addon_ids;
		`, it.Slug, it.Name, it.NameFa, it.Desc, it.Price, pq.Array([]string{catID}), variantsJSON, pq.Array(addonRefs))
		if err != nil {
			log.Printf("Failed to seed item %s: %v", it.Slug, err)
		}
	}
}

func seedZones(db *sql.DB) []string {
	zones := []struct {
		Name string
		Desc string
		Fee  int64
		Min  int64
		Sort int
	}{
		{"District 1 - Tajrish", "Tajrish, Niavaran, Darband", 35000, 150000, 1},
		{"District 3 - Vanak", "Vanak, Mirdamad, Jordan", 30000, 120000, 2},
		{"District 6 - City Center", "Valiasr, Enghelab, Fatemi", 25000, 100000, 3},
	}

	fmt.Println("Seeding Zones...")
	var ids []string
	for _, z := range zones {
		var id string
		err := db.QueryRow("SELECT id FROM zones WHERE name = $1", z.Name).Scan(&id)
		if err == sql.ErrNoRows {
			err = db.QueryRow(`
				INSERT INTO zones (name, description, delivery_fee, min_order, sort_order)
				VALUES ($1, $2, $3, $4, $5) RETURNING id;
			`, z.Name, z.Desc, z.Fee, z.Min, z.Sort).Scan(&id)
		}
		if err != nil {
			log.Printf("Failed to seed zone %s: %v", z.Name, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func seedSlots(db *sql.DB, zoneIDs []string) {
	windows := []string{"12:00-14:00", "18:00-20:00", "20:00-22:00"}

	fmt.Println("Seeding Slots...")
	for day := 0; day < 7; day++ {
		date := time.Now().AddDate(0, 0, day).Format("2006-01-02")
		for _, zoneID := range zoneIDs {
			for _, w := range windows {
				_, err := db.Exec(`
					INSERT INTO slots (zone_id, date, slot_window, capacity)
					VALUES ($1, $2, $3, 20)
					ON CONFLICT (zone_id, date, slot_window) DO NOTHING;
				`, zoneID, date, w)
				if err != nil {
					log.Printf("Failed to seed slot %s %s: %v", date, w, err)
				}
			}
		}
	}
}

func seedCoupons(db *sql.DB) {
	coupons := []struct {
		Code     string
		Kind     string
		Value    int64
		Bps      sql.NullInt64
		MinSpend int64
	}{
		{"WELCOME", "fixed", 50000, sql.NullInt64{}, 200000},
		{"EID20", "percent", 0, sql.NullInt64{Int64: 2000, Valid: true}, 300000},
	}

	fmt.Println("Seeding Coupons...")
	for _, c := range coupons {
		_, err := db.Exec(`
			INSERT INTO coupons (code, kind, value, percent_bps, min_spend, valid_from, valid_to, per_user_limit)
			VALUES ($1, $2, $3, $4, $5, NOW(), NOW() + INTERVAL '1 year', 3)
			ON CONFLICT ((upper(code))) DO NOTHING;
		`, c.Code, c.Kind, c.Value, c.Bps, c.MinSpend)
		if err != nil {
			log.Printf("Failed to seed coupon %s: %v", c.Code, err)
		}
	}
}
