package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invoice = `<?xml version="1.0" encoding="UTF-8"?>
<p:FatturaElettronica versione="FPR12" xmlns:p="http://ivaservizi.agenziaentrate.gov.it/docs/xsd/fatture/v1.2">
  <FatturaElettronicaBody>
    <DatiBeniServizi>
      <DettaglioLinee>
        <NumeroLinea>1</NumeroLinea>
        <Descrizione>GASOLIO AB123CD</Descrizione>
        <Quantita>45,20</Quantita>
      </DettaglioLinee>
      <DettaglioLinee>
        <NumeroLinea>2</NumeroLinea>
        <Descrizione>BENZINA CD456EF</Descrizione>
        <AltriDatiGestionali>
          <TipoDato>TARGA</TipoDato>
        </AltriDatiGestionali>
      </DettaglioLinee>
    </DatiBeniServizi>
  </FatturaElettronicaBody>
</p:FatturaElettronica>`

func TestParseKeepsPrefixes(t *testing.T) {
	root, err := Parse([]byte(invoice))
	require.NoError(t, err)
	require.Len(t, root.Children, 1)

	doc := root.Children[0]
	assert.Equal(t, "p:FatturaElettronica", doc.Name)

	v, ok := doc.Attr("versione")
	assert.True(t, ok)
	assert.Equal(t, "FPR12", v)

	_, ok = doc.Attr("xmlns:p")
	assert.True(t, ok)
}

func TestLookup(t *testing.T) {
	root, err := Parse([]byte(invoice))
	require.NoError(t, err)

	lines := root.Lookup("p:FatturaElettronica.FatturaElettronicaBody.DatiBeniServizi.DettaglioLinee")
	require.Len(t, lines, 2)

	tests := []struct {
		name  string
		path  string
		want  string
		found bool
	}{
		{"leaf", "p:FatturaElettronica.FatturaElettronicaBody.DatiBeniServizi.DettaglioLinee.Descrizione", "GASOLIO AB123CD", true},
		{"indexed", "p:FatturaElettronica.FatturaElettronicaBody.DatiBeniServizi.DettaglioLinee[1].Descrizione", "BENZINA CD456EF", true},
		{"index out of range", "p:FatturaElettronica.FatturaElettronicaBody.DatiBeniServizi.DettaglioLinee[5].Descrizione", "", false},
		{"attribute", "p:FatturaElettronica.@versione", "FPR12", true},
		{"missing attribute", "p:FatturaElettronica.@missing", "", false},
		{"missing element", "p:FatturaElettronica.Nope", "", false},
		{"empty segment", "p:FatturaElettronica..FatturaElettronicaBody", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := root.ValueAt(tt.path)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValue(t *testing.T) {
	root, err := Parse([]byte(invoice))
	require.NoError(t, err)
	lines := root.Lookup("p:FatturaElettronica.FatturaElettronicaBody.DatiBeniServizi.DettaglioLinee")
	require.Len(t, lines, 2)

	// single leaf child
	gest, ok := lines[1].Find("AltriDatiGestionali")
	require.True(t, ok)
	v, ok := gest.Value()
	assert.True(t, ok)
	assert.Equal(t, "TARGA", v)

	// several children and no own text
	_, ok = lines[0].Value()
	assert.False(t, ok)

	assert.Contains(t, lines[0].InnerText(), "GASOLIO AB123CD")
	assert.Contains(t, lines[0].InnerText(), "45,20")
}

func TestLookupEmptyPath(t *testing.T) {
	n := &Node{Name: "x", Text: "value"}
	got := n.Lookup("")
	require.Len(t, got, 1)
	assert.Same(t, n, got[0])

	var nilNode *Node
	assert.Nil(t, nilNode.Lookup("a"))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   \n"},
		{"unclosed", "<a><b>1</b>"},
		{"mismatched", "<a><b>1</c></a>"},
		{"garbage", "not xml at all <<<"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestParseLatin1(t *testing.T) {
	// "Località" encoded as ISO-8859-1
	data := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><a><b>Localit\xe0</b></a>")
	root, err := Parse(data)
	require.NoError(t, err)
	v, ok := root.ValueAt("a.b")
	assert.True(t, ok)
	assert.Equal(t, "Località", v)
}
