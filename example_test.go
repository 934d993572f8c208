package rowparse_test

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/SimonDaKappa/go-rowparse"
)

type Order struct {
	ID    int     `json:"id,required"`
	Item  string  `json:"item"`
	Price float64 `json:"price"`
}

func ExampleReader_RowType() {
	reg, err := rowparse.NewParserRegistry(rowparse.ParserRegistryOpts{})
	if err != nil {
		panic(err)
	}
	if err := reg.Register(reflect.TypeFor[Order](), rowparse.StructParserFactory(rowparse.StructParserOpts{})); err != nil {
		panic(err)
	}

	r, err := rowparse.NewReader(rowparse.ReaderOpts{
		Quote:         '\'',
		SkipFirstLine: true,
		Registry:      reg,
	})
	if err != nil {
		panic(err)
	}
	ds, err := r.RowType(rowparse.StringType, reflect.TypeFor[Order]())
	if err != nil {
		panic(err)
	}

	input := strings.Join([]string{
		"customer,order",
		`alice,'{"id":1,"item":"tea, green","price":3.5}'`,
		`bob,{"id":2,"item":"coffee","price":2}`,
	}, "\n")

	rows, err := ds.CollectString(context.Background(), input)
	if err != nil {
		panic(err)
	}
	for _, row := range rows {
		o := row[1].(Order)
		fmt.Printf("%s ordered %q for %.2f\n", row[0], o.Item, o.Price)
	}
	// Output:
	// alice ordered "tea, green" for 3.50
	// bob ordered "coffee" for 2.00
}

func ExampleRowBuilder_ParseRecord() {
	reg, err := rowparse.NewParserRegistry(rowparse.ParserRegistryOpts{})
	if err != nil {
		panic(err)
	}
	b, err := rowparse.NewRowBuilderFromTypes(reg, rowparse.RowBuilderOpts{},
		rowparse.IntType, rowparse.BoolType, rowparse.JSONMapType)
	if err != nil {
		panic(err)
	}

	row, err := b.ParseRecord([]string{"42", "true", `{"k":"v"}`})
	if err != nil {
		panic(err)
	}
	fmt.Println(row)

	_, err = b.ParseRecord([]string{"x", "true", "{}"})
	fmt.Println(err != nil)
	// Output:
	// 42,true,map[k:v]
	// true
}
