package marketplace

import (
	"errors"
	"testing"
)

func shopeeCells() [][]string {
	return [][]string{
		{"Relatório de pedidos - Loja Molduraria"},
		{"Período: 01/03/2024 - 31/03/2024"},
		{},
		{"ID do pedido", "Status do pedido", "Nome de usuário (comprador)", "Data de criação do pedido", "Nome do Produto", "Nome da variação", "Preço acordado", "Quantidade", "Valor Total"},
		{"240301ABC", "Concluído", "ana.silva", "01/03/2024 10:15", "Quadro Decorativo Moldura Preta", "50x70", "R$ 189,90", "1", "R$ 189,90"},
		{"240301ABC", "Concluído", "ana.silva", "01/03/2024 10:15", "Quadro Decorativo Moldura Branca", "30x40", "R$ 99,90", "2", ""},
		{"", "", "", "", "", "", "", "", ""},
		{"240302XYZ", "Concluído", "bruno", "02/03/2024", "Espelho Redondo 60cm", "", "1.234,56", "1", "1.234,56"},
	}
}

func TestParseRows_ShopeeWithBanner(t *testing.T) {
	rows, rowErrs, err := ParseRows(Shopee, shopeeCells())
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if len(rowErrs) != 0 {
		t.Fatalf("unexpected row errors: %v", rowErrs)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	first := rows[0]
	if first.Line != 5 || first.ExternalID != "240301ABC" || first.Buyer != "ana.silva" {
		t.Fatalf("unexpected first row: %+v", first)
	}
	if first.Variation != "50x70" || first.Quantity != 1 || first.Total.String() != "189.9" {
		t.Fatalf("unexpected first row values: %+v", first)
	}
	if first.CreatedAt == nil || first.CreatedAt.Format("2006-01-02 15:04") != "2024-03-01 10:15" {
		t.Fatalf("created_at = %v", first.CreatedAt)
	}

	if got := rows[1].Total.String(); got != "199.8" {
		t.Fatalf("total derived from unit price = %s, want 199.8", got)
	}
	if got := rows[2].UnitPrice.String(); got != "1234.56" {
		t.Fatalf("unit price = %s, want 1234.56", got)
	}
	if rows[2].Line != 8 {
		t.Fatalf("line = %d, want 8", rows[2].Line)
	}
}

func TestParseRows_MercadoLivreHeaders(t *testing.T) {
	cells := [][]string{
		{"N.º de venda", "Data da venda", "Unidades", "Total (BRL)", "Título do anúncio", "Variação", "Comprador"},
		{"2000007654321", "2024-03-05", "1", "149.90", "Tela Canvas Paisagem", "Tamanho: 40x60", "CARLOS123"},
	}

	rows, rowErrs, err := ParseRows(MercadoLivre, cells)
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if len(rowErrs) != 0 || len(rows) != 1 {
		t.Fatalf("rows=%d errors=%v", len(rows), rowErrs)
	}
	if rows[0].Buyer != "CARLOS123" || rows[0].Total.String() != "149.9" {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
}

func TestParseRows_MissingColumns(t *testing.T) {
	cells := [][]string{
		{"ID do pedido", "Nome do Produto", "Valor Total"},
		{"1", "Quadro", "10"},
	}

	_, _, err := ParseRows(Shopee, cells)

	var mce *MissingColumnsError
	if !errors.As(err, &mce) {
		t.Fatalf("expected MissingColumnsError, got %v", err)
	}
	if len(mce.Columns) != 1 || mce.Columns[0] != FieldQuantity {
		t.Fatalf("missing = %v, want [quantity]", mce.Columns)
	}
}

func TestParseRows_RowErrors(t *testing.T) {
	cells := [][]string{
		{"ID do pedido", "Nome do Produto", "Quantidade", "Valor Total", "Data de criação do pedido"},
		{"", "Quadro", "1", "10", ""},
		{"A2", "Quadro", "um", "10", ""},
		{"A3", "Quadro", "0", "10", ""},
		{"A4", "Quadro", "1", "dez reais", ""},
		{"A5", "Quadro", "1", "10", "ontem"},
		{"A6", "Quadro", "1", "10", ""},
	}

	rows, rowErrs, err := ParseRows(Shopee, cells)
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if len(rows) != 1 || rows[0].ExternalID != "A6" {
		t.Fatalf("valid rows = %+v", rows)
	}

	want := []struct {
		row    int
		column string
		code   string
	}{
		{2, FieldExternalID, ErrCodeRequiredField},
		{3, FieldQuantity, ErrCodeInvalidType},
		{4, FieldQuantity, ErrCodeInvalidRange},
		{5, FieldTotal, ErrCodeInvalidFormat},
		{6, FieldCreatedAt, ErrCodeInvalidFormat},
	}
	if len(rowErrs) != len(want) {
		t.Fatalf("got %d row errors, want %d: %v", len(rowErrs), len(want), rowErrs)
	}
	for i, w := range want {
		got := rowErrs[i]
		if got.Row != w.row || got.Column != w.column || got.Code != w.code {
			t.Errorf("error %d = %+v, want row %d column %s code %s", i, got, w.row, w.column, w.code)
		}
	}
}
