package main

import (
	"shopflow/internal/config"
	"shopflow/internal/domain/model"
	"shopflow/internal/event"
	"shopflow/internal/handler"
	"shopflow/internal/infra/db"
	infraEvent "shopflow/internal/infra/event"
	infraNotify "shopflow/internal/infra/notify"
	infraPayment "shopflow/internal/infra/payment"
	infraRepo "shopflow/internal/infra/repository"
	"shopflow/internal/notify"
	"shopflow/internal/server"
	"shopflow/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .envはローカル開発用。無くても環境変数があれば動く
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.WishlistItem{},
		&model.Order{},
		&model.OrderItem{},
	); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}

	//Repository（GORM実装）生成
	tx := infraRepo.NewTxManagerGorm(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)

	//決済ゲートウェイ
	gateway := infraPayment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)

	//メール通知。SMTP未設定ならログだけ
	var mailer notify.Notifier
	if cfg.SMTPHost != "" {
		mailer = infraNotify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom)
	} else {
		mailer = infraNotify.NewLogNotifier(logger)
	}
	dispatcher := notify.NewDispatcher(mailer, logger)

	//イベント発行。ブローカー未設定なら無効。発行はリクエスト経路から外して非同期
	var publisher event.Publisher = event.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := infraEvent.NewKafkaPublisher(cfg.KafkaBrokers, cfg.OrderEventsTopic, logger)
		defer kp.Close()
		publisher = event.NewAsyncPublisher(kp, logger)
	}

	//Usecase生成
	orderUC := usecase.NewOrderUsecase(tx, dispatcher, publisher, logger, cfg.Currency)
	checkoutUC := usecase.NewCheckoutUsecase(tx, gateway, dispatcher, publisher, logger)
	productUC := usecase.NewProductUsecase(productRepo)
	cartUC := usecase.NewCartUsecase(tx)
	wishlistUC := usecase.NewWishlistUsecase(tx)

	//Handler生成
	productH := handler.NewProductHandler(productUC)
	cartH := handler.NewCartHandler(cartUC)
	wishlistH := handler.NewWishlistHandler(wishlistUC)
	orderH := handler.NewOrderHandler(orderUC, checkoutUC)

	//Server起動
	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}

	logger.Info("starting api", zap.String("addr", addr))
	if err := server.Start(addr, cfg, productH, cartH, wishlistH, orderH); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
