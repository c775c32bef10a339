// Package service assembles a running keyops service from a parsed
// configuration: key-info stores, providers, back-end handlers, the
// dispatcher and the front end.
package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/systmms/keyops/internal/auth"
	"github.com/systmms/keyops/internal/back"
	"github.com/systmms/keyops/internal/config"
	kerrors "github.com/systmms/keyops/internal/errors"
	"github.com/systmms/keyops/internal/front"
	internalkeyinfo "github.com/systmms/keyops/internal/keyinfo"
	"github.com/systmms/keyops/internal/metrics"
	"github.com/systmms/keyops/internal/providers"
	"github.com/systmms/keyops/internal/providers/pkcs11"
	"github.com/systmms/keyops/internal/secure"
	"github.com/systmms/keyops/pkg/keyinfo"
	"github.com/systmms/keyops/pkg/operations"
	"github.com/systmms/keyops/pkg/requests"
)

// Service is a fully assembled keyops instance.
type Service struct {
	front       *front.Front
	metricsAddr string
	logger      *zap.Logger
}

// New builds every component the configuration enables. Construction
// failures are fatal; nothing is retried at request time.
func New(cfg *config.Definition, logger *zap.Logger) (*Service, error) {
	converter, err := operations.NewCborConverter()
	if err != nil {
		return nil, kerrors.StartupError{Component: "converter", Message: "building CBOR converter", Err: err}
	}

	authenticator := auth.NewDirectAuthenticator()

	type builtProvider struct {
		provider providers.Provider
		id       requests.ProviderID
	}
	var built []builtProvider

	if cfg.Providers.Software.Enabled {
		store, err := newStore(cfg)
		if err != nil {
			return nil, err
		}
		software, err := providers.NewSoftwareProvider(providers.SoftwareConfig{
			Store:  store,
			Logger: logger,
		})
		if err != nil {
			return nil, kerrors.StartupError{Component: "software-provider", Message: "building provider", Err: err}
		}
		built = append(built, builtProvider{software, requests.ProviderSoftware})
	}

	if cfg.Providers.Pkcs11.Enabled {
		store, err := newStore(cfg)
		if err != nil {
			return nil, err
		}
		pin, err := loadPin(cfg.Providers.Pkcs11)
		if err != nil {
			return nil, err
		}
		provider, err := pkcs11.Load(cfg.Providers.Pkcs11.LibraryPath, pkcs11.Config{
			SlotNumber: cfg.Providers.Pkcs11.SlotNumber,
			UserPin:    pin,
			Store:      store,
			Logger:     logger,
		})
		if err != nil {
			return nil, kerrors.StartupError{
				Component:  "pkcs11-provider",
				Message:    "building provider",
				Suggestion: "check library_path, slot_number and the token PIN",
				Err:        err,
			}
		}
		built = append(built, builtProvider{provider, requests.ProviderPkcs11})
	}

	var infos []operations.ProviderInfo
	for _, b := range built {
		info, err := b.provider.Describe()
		if err != nil {
			return nil, kerrors.StartupError{Component: b.id.String(), Message: "describing provider", Err: err}
		}
		infos = append(infos, info)
	}

	core, err := providers.NewCoreProvider(providers.CoreConfig{
		VersionMaj:     cfg.Core.VersionMaj,
		VersionMin:     cfg.Core.VersionMin,
		ProviderInfos:  infos,
		Authenticators: []operations.AuthenticatorInfo{authenticator.Describe()},
	})
	if err != nil {
		return nil, kerrors.StartupError{Component: "core-provider", Message: "building provider", Err: err}
	}
	built = append(built, builtProvider{core, requests.ProviderCore})

	handlers := make(map[requests.ProviderID]*back.Handler, len(built))
	for _, b := range built {
		handler, err := back.NewHandler(back.HandlerConfig{
			Provider:    b.provider,
			Converter:   converter,
			ProviderID:  b.id,
			ContentType: requests.BodyCbor,
			AcceptType:  requests.BodyCbor,
			Logger:      logger,
		})
		if err != nil {
			return nil, kerrors.StartupError{Component: b.id.String(), Message: "building back-end handler", Err: err}
		}
		handlers[b.id] = handler
	}

	dispatcher, err := back.NewDispatcher(handlers, logger)
	if err != nil {
		return nil, kerrors.StartupError{Component: "dispatcher", Message: "building dispatcher", Err: err}
	}

	f, err := front.New(front.Config{
		SocketPath:    cfg.Listener.SocketPath,
		MaxBodySize:   cfg.Listener.MaxBodySize,
		Dispatcher:    dispatcher,
		Authenticator: authenticator,
		Logger:        logger,
	})
	if err != nil {
		return nil, kerrors.StartupError{Component: "front", Message: "building front end", Err: err}
	}

	svc := &Service{front: f, logger: logger.Named("service")}
	if cfg.Metrics.Enabled {
		metrics.Init()
		svc.metricsAddr = cfg.Metrics.Address
	}
	return svc, nil
}

// Run serves until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.front.Serve(ctx) })

	if s.metricsAddr != "" {
		server := &http.Server{Addr: s.metricsAddr, Handler: metrics.Handler()}
		group.Go(func() error {
			s.logger.Info("serving metrics", zap.String("address", s.metricsAddr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			return server.Shutdown(context.Background())
		})
	}
	return group.Wait()
}

// newStore builds one key-info store instance. Each provider gets its
// own instance: the manager contract is not thread-safe and every
// provider serialises access behind its own lock.
func newStore(cfg *config.Definition) (keyinfo.Manager, error) {
	switch cfg.Store.Type {
	case "memory":
		return internalkeyinfo.NewMemoryStore(), nil
	case "sql":
		store, err := internalkeyinfo.OpenSQLStore(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, kerrors.StartupError{
				Component:  "key-info-store",
				Message:    "opening SQL store",
				Suggestion: "check key_info_store.driver and dsn",
				Err:        err,
			}
		}
		return store, nil
	default:
		return nil, kerrors.ConfigError{
			Field:   "key_info_store.type",
			Value:   cfg.Store.Type,
			Message: "unknown store type",
		}
	}
}

// loadPin resolves the PKCS #11 user PIN into a protected buffer.
func loadPin(cfg config.Pkcs11Config) (*secure.Buffer, error) {
	switch cfg.PinSource {
	case "none":
		return nil, nil
	case "literal":
		return secure.NewBufferFromString(cfg.UserPin), nil
	case "keyring":
		pin, err := keyring.Get(cfg.KeyringService, cfg.KeyringUser)
		if err != nil {
			return nil, kerrors.StartupError{
				Component:  "pkcs11-provider",
				Message:    fmt.Sprintf("reading PIN from keyring entry %s/%s", cfg.KeyringService, cfg.KeyringUser),
				Suggestion: "store the PIN with your OS keyring tooling first",
				Err:        err,
			}
		}
		return secure.NewBufferFromString(pin), nil
	default:
		return nil, kerrors.ConfigError{
			Field:   "providers.pkcs11.pin_source",
			Value:   cfg.PinSource,
			Message: "unknown pin source",
		}
	}
}
