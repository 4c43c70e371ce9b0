package orders

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Simplici0/molduraria/internal/catalog"
	"github.com/Simplici0/molduraria/internal/db"
	"github.com/Simplici0/molduraria/internal/ledger"
	"github.com/Simplici0/molduraria/internal/migrations"
	"github.com/Simplici0/molduraria/internal/pricing"
)

type fixture struct {
	db      *sql.DB
	service *Service
	ledger  *ledger.Store
	frameID int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	ctx := context.Background()
	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "orders.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, migrations.Up(ctx, database))

	products := catalog.NewStore(database)
	frame, err := products.Create(ctx, catalog.Product{
		Reference:          "MOL-001",
		Description:        "Moldura caixa 3cm",
		Family:             catalog.FamilyMoldura,
		Cost:               catalog.NewCost(decimal.NewFromInt(50)),
		ManufacturingPrice: catalog.NewManufacturingPrice(decimal.NewFromInt(150)),
		BarLengthCm:        decimal.NewFromInt(270),
		BarWidthCm:         decimal.NewFromInt(3),
		Active:             true,
	})
	require.NoError(t, err)

	book := ledger.NewStore(database)
	calc := pricing.NewCalculator(products, pricing.DefaultRules())
	return fixture{
		db:      database,
		service: NewService(NewStore(database), calc, book, zap.NewNop()),
		ledger:  book,
		frameID: frame.ID,
	}
}

func (f fixture) frameRequest() pricing.Request {
	return pricing.Request{
		HeightCm: decimal.NewFromInt(50),
		WidthCm:  decimal.NewFromInt(70),
		Quantity: 2,
		Moldura:  pricing.Selection{Use: true, ProductID: f.frameID},
	}
}

func TestService_CreateStoresRecalculatedValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	o, err := f.service.Create(ctx, NewOrder{Customer: " Ana ", Description: "Quadro sala", DueDate: &due, Request: f.frameRequest()})
	require.NoError(t, err)

	got, err := f.service.Get(ctx, o.ID)
	require.NoError(t, err)

	assert.Equal(t, "Ana", got.Customer)
	assert.Equal(t, StagePending, got.Stage)
	assert.Equal(t, SourceManual, got.Source)
	assert.Equal(t, 2, got.Quantity)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "2.94", got.Items[0].Quantity.String())
	assert.Equal(t, "294", got.TotalCost.String())
	assert.Equal(t, "882", got.FinalValue.String())
	require.NotNil(t, got.Request)
	assert.Equal(t, f.frameID, got.Request.Moldura.ProductID)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, "2024-05-10", got.DueDate.Format("2006-01-02"))
}

func TestService_CreatePropagatesCalculatorErrors(t *testing.T) {
	f := newFixture(t)

	req := f.frameRequest()
	req.Quantity = 0
	_, err := f.service.Create(context.Background(), NewOrder{Request: req})

	var verr *pricing.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestService_MoveFollowsBoard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.service.Create(ctx, NewOrder{Customer: "Bruno", Request: f.frameRequest()})
	require.NoError(t, err)

	_, err = f.service.Move(ctx, o.ID, StageAssembly)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StagePending, terr.From)

	for _, st := range []Stage{StageCutting, StageAssembly, StageFinishing, StageReady} {
		o, err = f.service.Move(ctx, o.ID, st)
		require.NoError(t, err)
		assert.Equal(t, st, o.Stage)
	}

	sales, err := f.ledger.List(ctx, ledger.Filter{Kind: ledger.KindSale})
	require.NoError(t, err)
	assert.Empty(t, sales)

	o, err = f.service.Move(ctx, o.ID, StageDelivered)
	require.NoError(t, err)
	assert.Equal(t, StageDelivered, o.Stage)

	sales, err = f.ledger.List(ctx, ledger.Filter{Kind: ledger.KindSale})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "882", sales[0].Amount.String())
	require.NotNil(t, sales[0].OrderID)
	assert.Equal(t, o.ID, *sales[0].OrderID)
	assert.Equal(t, "Pedido #1 - Bruno", sales[0].Description)

	_, err = f.service.Move(ctx, o.ID, StageCancelled)
	assert.ErrorAs(t, err, &terr)
}

func TestService_CancelFromOpenStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.service.Create(ctx, NewOrder{Request: f.frameRequest()})
	require.NoError(t, err)

	o, err = f.service.Move(ctx, o.ID, StageCancelled)
	require.NoError(t, err)
	assert.Equal(t, StageCancelled, o.Stage)
}

func TestService_MoveMissingOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Move(context.Background(), 99, StageCutting)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ImportRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	imported := Order{
		Customer:    "comprador_123",
		Description: "Quadro 50x70 moldura preta",
		Quantity:    1,
		FinalValue:  decimal.RequireFromString("189.90"),
		TotalSale:   decimal.RequireFromString("189.90"),
		Source:      SourceShopee,
		ExternalRef: "240301ABCDEF",
		Sector:      "molduraria",
	}
	_, err := f.service.Import(ctx, imported)
	require.NoError(t, err)

	_, err = f.service.Import(ctx, imported)
	assert.ErrorIs(t, err, ErrDuplicateExternalRef)

	exists, err := NewStore(f.db).ExistsExternal(ctx, SourceShopee, "240301ABCDEF")
	require.NoError(t, err)
	assert.True(t, exists)

	bySector, err := f.service.List(ctx, Filter{Sector: "molduraria"})
	require.NoError(t, err)
	require.Len(t, bySector, 1)
	assert.Nil(t, bySector[0].Request)
	assert.Empty(t, bySector[0].Items)
}

func TestService_Board(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.Create(ctx, NewOrder{Request: f.frameRequest()})
	require.NoError(t, err)
	_, err = f.service.Create(ctx, NewOrder{Request: f.frameRequest()})
	require.NoError(t, err)
	_, err = f.service.Move(ctx, first.ID, StageCutting)
	require.NoError(t, err)

	board, err := f.service.Board(ctx)
	require.NoError(t, err)
	require.Len(t, board, len(Stages()))

	assert.Equal(t, StagePending, board[0].Stage)
	assert.Equal(t, 1, board[0].Count)
	assert.Equal(t, StageCutting, board[1].Stage)
	assert.Equal(t, 1, board[1].Count)
	assert.Equal(t, StageCancelled, board[len(board)-1].Stage)
	assert.NotNil(t, board[len(board)-1].Orders)
}

func TestStageCanMoveTo(t *testing.T) {
	assert.True(t, StagePending.CanMoveTo(StageCutting))
	assert.False(t, StagePending.CanMoveTo(StageReady))
	assert.False(t, StageCutting.CanMoveTo(StagePending))
	assert.True(t, StageReady.CanMoveTo(StageCancelled))
	assert.False(t, StageDelivered.CanMoveTo(StageCancelled))
	assert.False(t, StageCancelled.CanMoveTo(StagePending))
	assert.False(t, StagePending.CanMoveTo("arquivado"))
}
