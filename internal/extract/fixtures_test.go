package extract

// freeTextInvoice carries plate and date inside the line description.
const freeTextInvoice = `<?xml version="1.0" encoding="UTF-8"?>
<p:FatturaElettronica versione="FPR12" xmlns:p="http://ivaservizi.agenziaentrate.gov.it/docs/xsd/fatture/v1.2">
  <FatturaElettronicaHeader>
    <CedentePrestatore>
      <DatiAnagrafici>
        <IdFiscaleIVA><IdPaese>IT</IdPaese><IdCodice>01234567890</IdCodice></IdFiscaleIVA>
        <Anagrafica><Denominazione>Carburanti Nord SpA</Denominazione></Anagrafica>
      </DatiAnagrafici>
    </CedentePrestatore>
  </FatturaElettronicaHeader>
  <FatturaElettronicaBody>
    <DatiGenerali>
      <DatiGeneraliDocumento>
        <Data>2024-03-31</Data>
        <Numero>FT-2024-118</Numero>
      </DatiGeneraliDocumento>
    </DatiGenerali>
    <DatiBeniServizi>
      <DettaglioLinee>
        <NumeroLinea>1</NumeroLinea>
        <Descrizione>GASOLIO TARGA AB123CD DEL 10/03/2024 KM 120.450</Descrizione>
        <Quantita>45,20</Quantita>
        <PrezzoUnitario>1,60</PrezzoUnitario>
        <PrezzoTotale>72.30</PrezzoTotale>
      </DettaglioLinee>
      <DettaglioLinee>
        <NumeroLinea>2</NumeroLinea>
        <Descrizione>BENZINA TARGA CD 456 EF DEL 12/03/2024</Descrizione>
        <Quantita>30.00</Quantita>
        <PrezzoUnitario>1.85</PrezzoUnitario>
        <PrezzoTotale>55.50</PrezzoTotale>
      </DettaglioLinee>
      <DettaglioLinee>
        <NumeroLinea>3</NumeroLinea>
        <Descrizione>COMMISSIONE SERVIZIO CARTA</Descrizione>
        <Quantita>1</Quantita>
        <PrezzoUnitario>2.00</PrezzoUnitario>
        <PrezzoTotale>2.00</PrezzoTotale>
      </DettaglioLinee>
    </DatiBeniServizi>
  </FatturaElettronicaBody>
</p:FatturaElettronica>`

// dedicatedInvoice carries plate and date in dedicated elements.
const dedicatedInvoice = `<?xml version="1.0" encoding="UTF-8"?>
<ns2:FatturaElettronica versione="FPR12" xmlns:ns2="http://ivaservizi.agenziaentrate.gov.it/docs/xsd/fatture/v1.2">
  <FatturaElettronicaHeader>
    <CedentePrestatore>
      <DatiAnagrafici>
        <IdFiscaleIVA><IdPaese>IT</IdPaese><IdCodice>09876543210</IdCodice></IdFiscaleIVA>
        <Anagrafica><Nome>Mario</Nome><Cognome>Rossi</Cognome></Anagrafica>
      </DatiAnagrafici>
    </CedentePrestatore>
  </FatturaElettronicaHeader>
  <FatturaElettronicaBody>
    <DatiGenerali>
      <DatiGeneraliDocumento>
        <Data>2024-04-30</Data>
        <Numero>77</Numero>
      </DatiGeneraliDocumento>
    </DatiGenerali>
    <DatiBeniServizi>
      <DettaglioLinee>
        <NumeroLinea>1</NumeroLinea>
        <Descrizione>Gasolio autotrazione</Descrizione>
        <DataInizioPeriodo>2024-04-02</DataInizioPeriodo>
        <Quantita>50.00</Quantita>
        <PrezzoUnitario>1.700000</PrezzoUnitario>
        <PrezzoTotale>85.00</PrezzoTotale>
        <AltriDatiGestionali>
          <TipoDato>KM</TipoDato>
          <RiferimentoNumero>88000</RiferimentoNumero>
        </AltriDatiGestionali>
        <AltriDatiGestionali>
          <TipoDato>TARGA</TipoDato>
          <RiferimentoTesto>ef789gh</RiferimentoTesto>
        </AltriDatiGestionali>
      </DettaglioLinee>
    </DatiBeniServizi>
  </FatturaElettronicaBody>
</ns2:FatturaElettronica>`

// cardStatement is a non-FatturaPA supplier export with a single line.
const cardStatement = `<Statement supplier="FuelCard">
  <Header><Vat>IT55566677788</Vat></Header>
  <Transactions>
    <Tx card="7001-0002">
      <Plate>gh 321 jk</Plate>
      <When>15.03.2024</When>
      <Product>Diesel</Product>
      <Litres>40,5</Litres>
      <Total>68,85</Total>
      <Km>km 98.765</Km>
    </Tx>
  </Transactions>
</Statement>`
