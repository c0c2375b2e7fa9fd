package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/dmehra2102/Cartified/internal/catalog/domain"
	"github.com/shopspring/decimal"
)

// Repository serves a fixed product set. Products are immutable so no locking
// is needed after construction.
type Repository struct {
	byID     map[int]domain.Product
	products []domain.Product
}

func NewRepository(products []domain.Product) *Repository {
	r := &Repository{byID: make(map[int]domain.Product, len(products))}
	for _, p := range products {
		r.byID[p.ID] = p
	}
	r.products = make([]domain.Product, 0, len(r.byID))
	for _, p := range r.byID {
		r.products = append(r.products, p)
	}
	sort.Slice(r.products, func(i, j int) bool { return r.products[i].ID < r.products[j].ID })
	return r
}

func (r *Repository) List(ctx context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, len(r.products))
	copy(out, r.products)
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id int) (domain.Product, error) {
	p, ok := r.byID[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// Category returns products whose category matches case-insensitively.
func (r *Repository) Category(ctx context.Context, category string) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range r.products {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out, nil
}

func price(fiat, eth string) (decimal.Decimal, *domain.CryptoPrice) {
	f := decimal.RequireFromString(fiat)
	return f, &domain.CryptoPrice{ETH: decimal.RequireFromString(eth), USDC: f}
}

// Seed is the storefront's reference catalog.
func Seed() []domain.Product {
	type row struct {
		id                 int
		name, fiat, eth    string
		category           string
		sellerID, seller   string
		rating             float64
		reviews, stock     int
		description, image string
	}
	rows := []row{
		{1, "Minimalist Leather Wallet", "49.99", "0.0167", "Fashion", "0x123", "LeatherGoodsDAO", 4.8, 124, 15,
			"Handcrafted minimalist wallet with RFID protection. Verified on blockchain with authenticity certificate.",
			"https://images.pexels.com/photos/669996/pexels-photo-669996.jpeg"},
		{2, "Digital Art Collection: Abstract Future", "299.99", "0.1", "Digital", "0x456", "CryptoArtist", 4.9, 57, 3,
			"Limited edition digital art with provable scarcity. Includes physical display frame with authentication chip.",
			"https://images.pexels.com/photos/2832382/pexels-photo-2832382.jpeg"},
		{3, "Smart Home Hub", "199.99", "0.067", "Electronics", "0x789", "TechInnovators", 4.7, 89, 8,
			"Privacy-first smart home hub with local processing and verifiable firmware.",
			"https://images.pexels.com/photos/1034812/pexels-photo-1034812.jpeg"},
		{4, "Sustainable Bamboo Sunglasses", "79.99", "0.0267", "Fashion", "0xabc", "EcoFashion", 4.6, 203, 25,
			"Lightweight bamboo frames with polarized lenses and traceable sourcing.", ""},
		{5, "Blockchain Verified Sneakers", "149.99", "0.05", "Fashion", "0xdef", "AuthenticKicks", 4.8, 312, 12,
			"Limited sneakers with an on-chain authenticity record.", ""},
		{6, "Organic Coffee Subscription", "24.99", "0.0083", "Food", "0x321", "DirectTrade", 4.9, 456, 100,
			"Monthly single-origin coffee with farm-to-cup supply chain records.", ""},
		{7, "Blockchain Development Course", "199.99", "0.067", "Digital", "0x654", "CryptoEdu", 4.7, 178, 999,
			"Self-paced smart contract development course with certificate NFT.", ""},
		{8, "Smart Contract Audit Service", "499.99", "0.167", "Digital", "0x987", "SecurityDAO", 5.0, 42, 10,
			"Manual and automated audit for one contract up to 500 lines.", ""},
		{9, "Decentralized Cloud Storage", "9.99", "0.0033", "Tech", "0xcba", "StorageNodes", 4.5, 890, 999,
			"100 GB of encrypted storage distributed across independent nodes.", ""},
		{10, "Handcrafted Chess Set", "199.99", "0.067", "Home", "0xfed", "ArtisanGuild", 4.9, 67, 5,
			"Hand-carved walnut and maple chess set with maker provenance.", ""},
		{11, "VR Fitness System", "399.99", "0.133", "Electronics", "0x135", "FitnessChain", 4.4, 134, 7,
			"Standalone VR fitness headset with on-chain workout rewards.", ""},
		{12, "Farm-to-Table Meat Box", "129.99", "0.043", "Food", "0x246", "DirectFarm", 4.8, 98, 20,
			"Pasture-raised selection shipped from verified local farms.", ""},
	}

	out := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		fiat, crypto := price(r.fiat, r.eth)
		out = append(out, domain.Product{
			ID:          r.id,
			Name:        r.name,
			Price:       fiat,
			CryptoPrice: crypto,
			Image:       r.image,
			Category:    r.category,
			Seller:      domain.Seller{ID: r.sellerID, Name: r.seller, Verified: true},
			Rating:      r.rating,
			Reviews:     r.reviews,
			Description: r.description,
			InStock:     r.stock,
			Verified:    true,
		})
	}
	return out
}
