package extractor

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/product-extractor/internal/models"
	"github.com/maltedev/product-extractor/internal/scrapeerr"
)

func mustInput(t *testing.T, rawURL, html string) Input {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	in, err := NewInput(u, html, nil)
	require.NoError(t, err)
	return in
}

func TestGeneric_WellFormedOnAnyHTML(t *testing.T) {
	docs := []string{
		"",
		"<html></html>",
		"<html><body><p>Nothing to see</p></body></html>",
		"not even html <<<>>>",
		`<script type="application/ld+json">{broken</script>`,
	}

	for _, html := range docs {
		t.Run(html, func(t *testing.T) {
			product, err := New(mustInput(t, "https://shop.test/p/1", html)).Extract(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{models.PlaceholderImage}, product.Images)
			assert.NotNil(t, product.Sizes)
			assert.NotNil(t, product.Colors)
			assert.False(t, product.InStock)
		})
	}
}

const jsonLDPage = `<html><head>
<title>Linen Shirt | Brand</title>
<script type="application/ld+json">
{"@context":"https://schema.org","@graph":[
  {"@type":"BreadcrumbList"},
  {"@type":"ProductGroup","name":"Linen Shirt","description":"Relaxed fit.",
   "image":["/img/a.jpg","//cdn.shop.test/img/b.jpg","/img/a.jpg"],
   "hasVariant":[
     {"@type":"Product","size":"S","color":"Sand","offers":{"@type":"Offer","price":"45.50","priceCurrency":"EUR","availability":"https://schema.org/OutOfStock"}},
     {"@type":"Product","size":"M","color":"Sand","offers":{"@type":"Offer","price":"45.50","priceCurrency":"EUR","availability":"https://schema.org/InStock"}}
   ]}
]}
</script></head><body><h1>Ignored heading</h1></body></html>`

func TestGeneric_JSONLD(t *testing.T) {
	product, err := New(mustInput(t, "https://www.shop.test/products/linen", jsonLDPage)).Extract(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Linen Shirt", product.Name)
	require.NotNil(t, product.Price)
	assert.Equal(t, models.PriceInfo{AmountMinorUnits: 4550, CurrencyCode: "EUR"}, *product.Price)
	assert.Equal(t, []models.Size{{Name: "S", InStock: false}, {Name: "M", InStock: true}}, product.Sizes)
	assert.Equal(t, []models.Color{{Name: "Sand"}}, product.Colors)
	assert.Equal(t, []string{
		"https://www.shop.test/img/a.jpg",
		"https://cdn.shop.test/img/b.jpg",
	}, product.Images)
	assert.True(t, product.InStock)
	assert.Equal(t, "Relaxed fit.", product.Description)
}

const domPage = `<html><head>
<meta property="og:title" content="Wool Beanie">
<meta property="og:image" content="//cdn.shop.test/beanie.jpg">
<meta name="description" content="Warm.">
</head><body>
<div class="product-price"><s>€60,00</s> Sale €45,50</div>
<select name="size"><option>Select size</option><option>One</option></select>
<div class="availability">Sold out</div>
<button class="add-to-cart">Add to cart</button>
</body></html>`

func TestGeneric_DOMFallback(t *testing.T) {
	product, err := New(mustInput(t, "https://shop.test/beanie", domPage)).Extract(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Wool Beanie", product.Name)
	require.NotNil(t, product.Price)
	assert.Equal(t, int64(4550), product.Price.AmountMinorUnits)
	assert.Equal(t, "EUR", product.Price.CurrencyCode)
	assert.Equal(t, []models.Size{{Name: "One", InStock: true}}, product.Sizes)
	assert.Equal(t, []string{"https://cdn.shop.test/beanie.jpg"}, product.Images)
	assert.True(t, product.InStock, "an available size outranks the sold out banner")
	assert.Equal(t, "Warm.", product.Description)
}

func TestGeneric_Deterministic(t *testing.T) {
	for _, html := range []string{jsonLDPage, domPage, ""} {
		first, err := New(mustInput(t, "https://shop.test/p", html)).Extract(context.Background())
		require.NoError(t, err)
		second, err := New(mustInput(t, "https://shop.test/p", html)).Extract(context.Background())
		require.NoError(t, err)

		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		assert.Equal(t, string(a), string(b))
	}
}

type stubCaps struct {
	name   string
	price  *models.PriceInfo
	images []string
	stock  *bool
}

func (s stubCaps) Name() string                { return s.name }
func (s stubCaps) Price() *models.PriceInfo    { return s.price }
func (s stubCaps) Sizes() []models.Size        { return []models.Size{{Name: "M"}, {Name: " M ", InStock: true}} }
func (s stubCaps) Colors() []models.Color      { return nil }
func (s stubCaps) Images() []string            { return s.images }
func (s stubCaps) Description() string         { return "" }
func (s stubCaps) Stock([]models.Size) (bool, bool) {
	if s.stock == nil {
		return false, false
	}
	return *s.stock, true
}

func TestAssemble(t *testing.T) {
	t.Run("stock defaults to price presence", func(t *testing.T) {
		product, err := Assemble(stubCaps{name: "X", price: &models.PriceInfo{AmountMinorUnits: 100, CurrencyCode: "USD"}}, Options{})
		require.NoError(t, err)
		assert.True(t, product.InStock)
		assert.Equal(t, []models.Size{{Name: "M", InStock: true}}, product.Sizes)
		assert.Equal(t, []string{models.PlaceholderImage}, product.Images)
	})

	t.Run("explicit stock wins over price", func(t *testing.T) {
		no := false
		product, err := Assemble(stubCaps{name: "X", price: &models.PriceInfo{AmountMinorUnits: 100}, stock: &no}, Options{})
		require.NoError(t, err)
		assert.False(t, product.InStock)
	})

	t.Run("require core", func(t *testing.T) {
		_, err := Assemble(stubCaps{}, Options{RequireCore: true})
		require.Error(t, err)
		assert.True(t, scrapeerr.IsStructural(err))
		assert.Equal(t, "extraction", scrapeerr.Kind(err))
	})
}

func TestSizesFrom_ClassWordsAreNotStockMarkers(t *testing.T) {
	in := mustInput(t, "https://shop.test/p", `<ul class="sizes">
<li class="size-choose__item">M</li>
<li class="boost-tile">L</li>
<li class="hooks">XL</li>
</ul>`)

	assert.Equal(t, []models.Size{
		{Name: "M", InStock: true},
		{Name: "L", InStock: true},
		{Name: "XL", InStock: true},
	}, SizesFrom(in.Doc, "", ".sizes li"))
}

func TestOptionAvailable(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"plain", `<li class="size">M</li>`, true},
		{"choose", `<li class="size-choose__item">M</li>`, true},
		{"boost", `<li class="boost-tile">M</li>`, true},
		{"oos class", `<li class="size oos">M</li>`, false},
		{"oos modifier", `<li class="size--oos">M</li>`, false},
		{"oos snake case", `<li class="tile_oos">M</li>`, false},
		{"sold out", `<li class="size is-sold-out">M</li>`, false},
		{"unavailable", `<li class="size-unavailable">M</li>`, false},
		{"disabled attribute", `<li disabled>M</li>`, false},
		{"aria disabled", `<li aria-disabled="true">M</li>`, false},
		{"data available false", `<li data-available="false">M</li>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := mustInput(t, "https://shop.test/p", "<ul>"+tt.html+"</ul>")
			assert.Equal(t, tt.want, OptionAvailable(in.Doc.Find("li").First()))
		})
	}
}

func TestNewInputFromDocument(t *testing.T) {
	u, _ := url.Parse("https://shop.test/p")
	parsed := mustInput(t, u.String(), "<h1>Parsed</h1>")

	in, err := NewInputFromDocument(u, "<h1>Raw</h1>", parsed.Doc, nil)
	require.NoError(t, err)
	assert.Equal(t, "Parsed", NewGeneric(in).Name())

	in, err = NewInputFromDocument(u, "<h1>Raw</h1>", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Raw", NewGeneric(in).Name())
}

func TestResolveImages(t *testing.T) {
	base, _ := url.Parse("http://shop.test/a/b/product")
	got := ResolveImages(base,
		"img/1.jpg",
		"/img/2.jpg",
		"//cdn.test/3.jpg",
		"https://cdn.test/3.jpg",
		"data:image/png;base64,xyz",
		"",
		"/img/2.jpg",
	)
	assert.Equal(t, []string{
		"http://shop.test/a/b/img/1.jpg",
		"http://shop.test/img/2.jpg",
		"https://cdn.test/3.jpg",
	}, got)

	assert.Equal(t, "big.jpg", LargestFromSrcset("small.jpg 200w, big.jpg 800w"))
}

type fakePage struct {
	present  map[string]bool
	slow     map[string]bool
	enabled  map[string]bool
	content  string
	clicked  []string
	pressed  []string
	closed   bool
	closeErr error
}

func (p *fakePage) URL() string { return "https://shop.test/p" }

func (p *fakePage) Content() (string, error) { return p.content, nil }

func (p *fakePage) Exists(selector string) (bool, error) { return p.present[selector], nil }

func (p *fakePage) IsEnabled(selector string) (bool, error) {
	if !p.present[selector] {
		return false, scrapeerr.ExtractionError{Field: selector, Err: scrapeerr.ErrElementMissing}
	}
	return p.enabled[selector], nil
}

func (p *fakePage) check(op, selector string) error {
	if !p.present[selector] {
		return scrapeerr.ExtractionError{Field: selector, Err: scrapeerr.ErrElementMissing}
	}
	if p.slow[selector] {
		return scrapeerr.TimeoutError{Op: op + " " + selector, Err: context.DeadlineExceeded}
	}
	return nil
}

func (p *fakePage) Click(selector string, _ time.Duration) error {
	if err := p.check("click", selector); err != nil {
		return err
	}
	p.clicked = append(p.clicked, selector)
	return nil
}

func (p *fakePage) WaitVisible(selector string, _ time.Duration) error {
	return p.check("wait", selector)
}

func (p *fakePage) Press(key string) error {
	p.pressed = append(p.pressed, key)
	return nil
}

func (p *fakePage) Evaluate(string) (any, error) { return nil, nil }

func (p *fakePage) Close() error {
	p.closed = true
	return p.closeErr
}

func TestRunActions(t *testing.T) {
	t.Run("reads after interaction", func(t *testing.T) {
		page := &fakePage{
			present: map[string]bool{".size-button": true, ".size-list": true},
			content: `<ul class="size-list"><li>S</li></ul>`,
		}
		snaps, err := RunActions(context.Background(), page,
			Click(".size-button"),
			WaitVisible(".size-list").Within(time.Second),
			Read("sizes"),
			Click(".close").AsOptional(),
			Press("Escape"),
		)
		require.NoError(t, err)
		snap, ok := snaps.Get("sizes")
		require.True(t, ok)
		assert.Equal(t, "S", snap.Doc.Find(".size-list li").Text())
		assert.Equal(t, []string{".size-button"}, page.clicked)
		assert.Equal(t, []string{"Escape"}, page.pressed)
	})

	t.Run("structural failure falls back to one size", func(t *testing.T) {
		_, err := RunActions(context.Background(), &fakePage{}, Click(".size-button"))
		require.Error(t, err)
		assert.True(t, scrapeerr.IsStructural(err))

		sizes, err := StructuralFallback(err, true)
		require.NoError(t, err)
		assert.Equal(t, []models.Size{{Name: models.OneSizeLabel, InStock: true}}, sizes)
	})

	t.Run("timeout propagates", func(t *testing.T) {
		page := &fakePage{
			present: map[string]bool{".size-button": true, ".size-list": true},
			slow:    map[string]bool{".size-list": true},
		}
		_, err := RunActions(context.Background(), page, Click(".size-button"), WaitVisible(".size-list"))
		require.Error(t, err)
		assert.Equal(t, "timeout", scrapeerr.Kind(err))

		sizes, err := StructuralFallback(err, true)
		assert.Nil(t, sizes)
		assert.Error(t, err)
	})

	t.Run("cancelled context stops before the next step", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		page := &fakePage{present: map[string]bool{".a": true}}
		_, err := RunActions(ctx, page, Click(".a"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, page.clicked)
	})

	t.Run("no page", func(t *testing.T) {
		_, err := RunActions(context.Background(), nil, Read("x"))
		assert.ErrorIs(t, err, scrapeerr.ErrNoBrowser)
	})
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(
		Registration{Name: "a", Domains: []string{"b.test", "a.test"}, New: New},
		Registration{Name: "c", Domains: []string{"c.test"}, Dynamic: true, New: New},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.test", "b.test", "c.test"}, reg.Domains())
	assert.Equal(t, []string{"c.test"}, reg.DynamicDomains())

	got, ok := reg.Lookup("b.test")
	require.True(t, ok)
	assert.Equal(t, "a", got.Name)

	_, ok = reg.Lookup("unknown.test")
	assert.False(t, ok)

	_, err = NewRegistry(
		Registration{Name: "a", Domains: []string{"a.test"}, New: New},
		Registration{Name: "b", Domains: []string{"A.test"}, New: New},
	)
	assert.Error(t, err)

	_, err = NewRegistry(Registration{Name: "nil", Domains: []string{"x.test"}})
	assert.Error(t, err)
}

func TestParseShopify(t *testing.T) {
	html := `<script type="application/json" data-product-json>
{"title":"Tree Runner","price":9800,"available":true,
 "images":["//cdn.shop.test/1.jpg",{"src":"//cdn.shop.test/2.jpg"}],
 "options":[{"name":"Color","values":["Black"]},{"name":"Size","values":["8","9"]}],
 "variants":[
   {"option1":"Black","option2":"8","available":false,"price":9800},
   {"option1":"Black","option2":"9","available":true,"price":9800}
 ]}
</script>`
	in := mustInput(t, "https://www.allbirds.test/products/tree-runner", html)

	product, ok := ParseShopify(in.Doc)
	require.True(t, ok)
	assert.Equal(t, "Tree Runner", product.Title)
	assert.Equal(t, &models.PriceInfo{AmountMinorUnits: 9800, CurrencyCode: "USD"}, product.PriceIn("USD"))
	assert.Equal(t, []models.Size{{Name: "8", InStock: false}, {Name: "9", InStock: true}}, product.Sizes())
	assert.Equal(t, []models.Color{{Name: "Black"}}, product.Colors())
	assert.Equal(t, []string{"//cdn.shop.test/1.jpg", "//cdn.shop.test/2.jpg"}, product.ImageURLs())
	assert.True(t, product.AnyAvailable())
}

func TestNextData(t *testing.T) {
	html := `<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"initialState":{"product":{"title":"Air Zoom","price":{"current":120}},"z":{"title":"other"}}}}}
</script>`
	in := mustInput(t, "https://nike.test/t/air-zoom", html)

	data, ok := NextData(in.Doc)
	require.True(t, ok)

	obj, ok := FindObject(data, "title", "price")
	require.True(t, ok)
	assert.Equal(t, "Air Zoom", String(obj, "title"))

	current, ok := Lookup(obj, "price", "current")
	require.True(t, ok)
	assert.Equal(t, float64(120), current)
}
