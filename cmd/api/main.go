package main

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/infra/stripegw"
	"app/internal/server"
	"app/internal/usecase"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

// crypto/rand由来のリフレッシュトークン平文
type randTokenSource struct{}

func (s *randTokenSource) NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type jwtIssuer struct {
	secret []byte
}

func (i *jwtIssuer) Issue(userID int64, role model.Role, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(i.secret)
}

func main() {
	//.envは無くても起動できる（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		panic(err)
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Product{},
		&model.Address{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.Rating{},
		&model.WishlistItem{},
		&model.AuditLog{},
	); err != nil {
		panic(err)
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	rtRepo := infraRepo.NewRefreshTokenGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	ratingRepo := infraRepo.NewRatingGormRepository(gormDB)
	wishlistRepo := infraRepo.NewWishlistGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txManager := infraRepo.NewGormTxManager(gormDB)

	//決済ゲートウェイ（Stripe）
	gw := stripegw.New(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}
	tokenSrc := &randTokenSource{}
	hasher := usecase.NewBcryptPasswordHasher(12)
	issuer := &jwtIssuer{secret: []byte(cfg.JWTSecret)}

	//Usecase生成
	authUC := usecase.NewAuthUsecase(userRepo, rtRepo, hasher, issuer, idGen, tokenSrc, clock)
	productUC := usecase.NewProductUsecase(productRepo, inventoryRepo, ratingRepo, auditRepo)
	cartUC := usecase.NewCartUsecase(txManager)
	addressUC := usecase.NewAddressUsecase(addressRepo)
	wishlistUC := usecase.NewWishlistUsecase(wishlistRepo, productRepo)
	ratingUC := usecase.NewRatingUsecase(ratingRepo, productRepo)
	orderUC := usecase.NewOrderUsecase(txManager)
	checkoutUC := usecase.NewCheckoutUsecase(txManager, addressRepo, userRepo, orderRepo, gw, cfg.FEURL)
	reconcileUC := usecase.NewReconcileUsecase(orderRepo, gw, auditRepo)
	webhookUC := usecase.NewWebhookUsecase(gw, reconcileUC)
	refundUC := usecase.NewRefundUsecase(orderRepo, gw, auditRepo)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager)
	dashboardUC := usecase.NewDashboardUsecase(orderRepo, userRepo, auditRepo)

	//Handler生成とルーティング
	e := server.New(cfg)
	server.RegisterRoutes(e, cfg, server.Handlers{
		Auth:         handler.NewAuthHandler(authUC),
		Product:      handler.NewProductHandler(productUC, ratingUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		Cart:         handler.NewCartHandler(cartUC),
		Address:      handler.NewAddressHandler(addressUC),
		Wishlist:     handler.NewWishlistHandler(wishlistUC),
		Rating:       handler.NewRatingHandler(ratingUC),
		Order:        handler.NewOrderHandler(orderUC),
		Payment:      handler.NewPaymentHandler(checkoutUC, webhookUC, refundUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC, reconcileUC),
		Dashboard:    handler.NewDashboardHandler(dashboardUC),
	})

	//Server起動
	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}
	if err := e.Start(addr); err != nil {
		panic(err)
	}
}
