package table

import (
	"github.com/go-jet/jet/v2/postgres"
)

var AdjustedPrice = newAdjustedPriceTable("public", "adjusted_price", "")

type adjustedPriceTable struct {
	postgres.Table

	// Columns
	Symbol postgres.ColumnString
	Date   postgres.ColumnDate
	Price  postgres.ColumnFloat

	AllColumns     postgres.ColumnList
	MutableColumns postgres.ColumnList
}

type AdjustedPriceTable struct {
	adjustedPriceTable

	EXCLUDED adjustedPriceTable
}

// AS creates new AdjustedPriceTable with assigned alias
func (a AdjustedPriceTable) AS(alias string) *AdjustedPriceTable {
	return newAdjustedPriceTable(a.SchemaName(), a.TableName(), alias)
}

// FromSchema creates new AdjustedPriceTable with assigned schema name
func (a AdjustedPriceTable) FromSchema(schemaName string) *AdjustedPriceTable {
	return newAdjustedPriceTable(schemaName, a.TableName(), a.Alias())
}

func newAdjustedPriceTable(schemaName, tableName, alias string) *AdjustedPriceTable {
	return &AdjustedPriceTable{
		adjustedPriceTable: newAdjustedPriceTableImpl(schemaName, tableName, alias),
		EXCLUDED:           newAdjustedPriceTableImpl("", "excluded", ""),
	}
}

func newAdjustedPriceTableImpl(schemaName, tableName, alias string) adjustedPriceTable {
	var (
		SymbolColumn   = postgres.StringColumn("symbol")
		DateColumn     = postgres.DateColumn("date")
		PriceColumn    = postgres.FloatColumn("price")
		allColumns     = postgres.ColumnList{SymbolColumn, DateColumn, PriceColumn}
		mutableColumns = postgres.ColumnList{PriceColumn}
	)

	return adjustedPriceTable{
		Table: postgres.NewTable(schemaName, tableName, alias, allColumns...),

		//Columns
		Symbol: SymbolColumn,
		Date:   DateColumn,
		Price:  PriceColumn,

		AllColumns:     allColumns,
		MutableColumns: mutableColumns,
	}
}
