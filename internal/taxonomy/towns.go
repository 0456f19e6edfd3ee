package taxonomy

// TownID identifies a municipality of the Condado de Huelva.
type TownID string

const (
	Almonte                TownID = "almonte"
	BollullosParDelCondado TownID = "bollullos-par-del-condado"
	Bonares                TownID = "bonares"
	Chucena                TownID = "chucena"
	EscacenaDelCampo       TownID = "escacena-del-campo"
	Hinojos                TownID = "hinojos"
	LaPalmaDelCondado      TownID = "la-palma-del-condado"
	LucenaDelPuerto        TownID = "lucena-del-puerto"
	Manzanilla             TownID = "manzanilla"
	Moguer                 TownID = "moguer"
	Niebla                 TownID = "niebla"
	PalosDeLaFrontera      TownID = "palos-de-la-frontera"
	PaternaDelCampo        TownID = "paterna-del-campo"
	RocianaDelCondado      TownID = "rociana-del-condado"
	VillalbaDelAlcor       TownID = "villalba-del-alcor"
	Villarrasa             TownID = "villarrasa"
)

var townEntities = []Entity{
	{ID: string(Almonte), Label: "Almonte", Synonyms: []string{"El Rocío", "Matalascañas", "Doñana"}},
	{ID: string(BollullosParDelCondado), Label: "Bollullos Par del Condado", Synonyms: []string{"Bollullos"}},
	{ID: string(Bonares), Label: "Bonares"},
	{ID: string(Chucena), Label: "Chucena"},
	{ID: string(EscacenaDelCampo), Label: "Escacena del Campo", Synonyms: []string{"Escacena"}},
	{ID: string(Hinojos), Label: "Hinojos"},
	{ID: string(LaPalmaDelCondado), Label: "La Palma del Condado", Synonyms: []string{"La Palma"}},
	{ID: string(LucenaDelPuerto), Label: "Lucena del Puerto", Synonyms: []string{"Lucena"}},
	{ID: string(Manzanilla), Label: "Manzanilla"},
	{ID: string(Moguer), Label: "Moguer", Synonyms: []string{"Mazagón"}},
	{ID: string(Niebla), Label: "Niebla"},
	{ID: string(PalosDeLaFrontera), Label: "Palos de la Frontera", Synonyms: []string{"Palos", "La Rábida"}},
	{ID: string(PaternaDelCampo), Label: "Paterna del Campo", Synonyms: []string{"Paterna"}},
	{ID: string(RocianaDelCondado), Label: "Rociana del Condado", Synonyms: []string{"Rociana"}},
	{ID: string(VillalbaDelAlcor), Label: "Villalba del Alcor", Synonyms: []string{"Villalba"}},
	{ID: string(Villarrasa), Label: "Villarrasa"},
}
