package app

import (
	"database/sql"

	"github.com/mbolis/quick-questionnaire/access"
	"github.com/mbolis/quick-questionnaire/attachments"
	"github.com/mbolis/quick-questionnaire/catalog"
	"github.com/mbolis/quick-questionnaire/config"
	"github.com/mbolis/quick-questionnaire/database"
	"github.com/mbolis/quick-questionnaire/notify"
	"github.com/mbolis/quick-questionnaire/storage"
	"github.com/mbolis/quick-questionnaire/submission"
)

type App struct {
	*sql.DB
	config.Config

	Repo        *database.Repository
	Catalog     *catalog.Catalog
	Store       *storage.Dir
	Attachments *attachments.Manager
	Notifier    *notify.Notifier
	Submission  *submission.Service
	Gate        *access.Gate
	Verifier    access.Verifier
}

// New opens the database and object store named by cfg and builds every
// service on top of them.
func New(cfg config.Config) (app App, err error) {
	app.Config = cfg

	app.Catalog, err = catalog.Load()
	if err != nil {
		return
	}

	app.DB, err = database.Open(cfg.DBUrl)
	if err != nil {
		return
	}
	app.Repo = database.NewRepository(app.DB)
	app.Verifier = access.NewVerifier(app.Repo)

	app.Store, err = storage.NewDir(cfg.StorageDir, cfg.PublicURL+"/files")
	if err != nil {
		app.DB.Close()
		return
	}
	app.Attachments = attachments.NewManager(app.Store)

	app.Notifier = notify.New(cfg.NotifyURL, cfg.NotifyTimeout)
	app.Submission, err = submission.NewService(app.Catalog, app.Repo, app.Notifier, cfg.PublicURL)
	if err != nil {
		app.DB.Close()
		return
	}

	app.Gate, err = access.NewGate(cfg.OperatorSecret, cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		app.Submission.Close()
		app.DB.Close()
	}
	return
}

// Close stops the submission latch, drains pending notifications and
// closes the database.
func (app App) Close() error {
	app.Submission.Close()
	app.Notifier.Wait()
	return app.DB.Close()
}
