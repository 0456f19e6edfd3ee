package taxonomy

// CategoryID identifies a visitor topic.
type CategoryID string

const (
	Naturaleza  CategoryID = "naturaleza"
	Playas      CategoryID = "playas"
	Gastronomia CategoryID = "gastronomia"
	Enoturismo  CategoryID = "enoturismo"
	Patrimonio  CategoryID = "patrimonio"
	Cultura     CategoryID = "cultura"
	Fiestas     CategoryID = "fiestas"
	Rutas       CategoryID = "rutas"
	Deporte     CategoryID = "deporte"
	Alojamiento CategoryID = "alojamiento"
	Agenda      CategoryID = "agenda"
)

var categoryEntities = []Entity{
	{ID: string(Naturaleza), Label: "Naturaleza", Synonyms: []string{"Espacios naturales", "Parque natural", "Medio ambiente"}},
	{ID: string(Playas), Label: "Playas", Synonyms: []string{"Playa", "Costa", "Litoral"}},
	{ID: string(Gastronomia), Label: "Gastronomía", Synonyms: []string{"Restaurantes", "Cocina", "Tapas"}},
	{ID: string(Enoturismo), Label: "Enoturismo", Synonyms: []string{"Vino", "Vinos", "Bodegas", "Vinagre"}},
	{ID: string(Patrimonio), Label: "Patrimonio", Synonyms: []string{"Monumentos", "Historia", "Castillo", "Iglesias"}},
	{ID: string(Cultura), Label: "Cultura", Synonyms: []string{"Museos", "Museo", "Artesanía"}},
	{ID: string(Fiestas), Label: "Fiestas", Synonyms: []string{"Romería", "Feria", "Semana Santa", "Tradiciones"}},
	{ID: string(Rutas), Label: "Rutas", Synonyms: []string{"Senderismo", "Cicloturismo", "Excursiones"}},
	{ID: string(Deporte), Label: "Deporte", Synonyms: []string{"Deportes", "Golf", "Hípica"}},
	{ID: string(Alojamiento), Label: "Alojamiento", Synonyms: []string{"Alojamientos", "Hoteles", "Dónde dormir"}},
	{ID: string(Agenda), Label: "Agenda", Synonyms: []string{"Eventos", "Qué hacer"}},
}
