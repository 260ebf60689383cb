package subdivision

import (
	"github.com/paulmach/orb"
	"github.com/stwalsh4118/parcela/internal/models"
)

const (
	placeholderModel = "https://modelviewer.dev/shared-assets/models/Astronaut.glb"
	imageParams      = "?w=300&h=200&fit=crop"
)

func strPtr(s string) *string { return &s }

func unsplash(ids ...string) models.StringList {
	urls := make(models.StringList, 0, len(ids))
	for _, id := range ids {
		urls = append(urls, "https://images.unsplash.com/photo-"+id+imageParams)
	}
	return urls
}

// Catalog returns the six zones of the development in seed order.
func Catalog() []models.Zone {
	return []models.Zone{
		{
			ID:          "loma-poniente",
			Name:        "Loma Poniente",
			ZoningType:  "Residential",
			BasePrice:   78000,
			LotSizeSqm:  55,
			Description: "Elevated western parcel above the main dirt road. Gentle slope with panoramic views of the valley and surrounding hills. The road curves along the southern edge providing direct access.",
			Model3DURL:  strPtr(placeholderModel),
			CameraOrbit: strPtr("45deg 65deg 2.5m"),
			Corners:     models.Corners{orb.Point{-116.6033, 31.4882}, orb.Point{-116.6005, 31.488}, orb.Point{-116.6018, 31.4856}, orb.Point{-116.6033, 31.4858}},
			ImageURLs:   unsplash("1507525428034-b723cf961d3e", "1506905925346-21bda4d32df4", "1519046904884-53103b34b206"),
		},
		{
			ID:          "bajada-sur",
			Name:        "Bajada Sur",
			ZoningType:  "Residential",
			BasePrice:   68000,
			LotSizeSqm:  52,
			Description: "Lower western slope following the main access road. Natural desert landscaping with native vegetation. Quiet, south-facing parcels ideal for retreat-style homes with solar exposure.",
			Model3DURL:  strPtr(placeholderModel),
			CameraOrbit: strPtr("0deg 75deg 2.8m"),
			Corners:     models.Corners{orb.Point{-116.6033, 31.4858}, orb.Point{-116.6018, 31.4856}, orb.Point{-116.6003, 31.4824}, orb.Point{-116.6033, 31.4824}},
			ImageURLs:   unsplash("1433086966358-54859d0ed716", "1471922694854-ff1b63b20054", "1414609245224-afa02bfb3fda"),
		},
		{
			ID:          "cruce-arroyo",
			Name:        "Cruce del Arroyo",
			ZoningType:  "Mixed Use",
			BasePrice:   85000,
			LotSizeSqm:  58,
			Description: "Central plateau between the road junction and the rocky ridge. Prime location at the crossroads of the main access road and the arroyo branch. Approved for residential and boutique commercial.",
			Model3DURL:  strPtr(placeholderModel),
			CameraOrbit: strPtr("135deg 70deg 3m"),
			Corners:     models.Corners{orb.Point{-116.6018, 31.487}, orb.Point{-116.5998, 31.4866}, orb.Point{-116.5996, 31.4848}, orb.Point{-116.6012, 31.4843}},
			ImageURLs:   unsplash("1505228395891-9a51e7e86bf6", "1509233725247-49e657c54213", "1468413253725-0d5181091126"),
		},
		{
			ID:          "mesa-norte",
			Name:        "Mesa Norte",
			ZoningType:  "Residential",
			BasePrice:   82000,
			LotSizeSqm:  60,
			Description: "Expansive flat plateau east of the rocky ridge. The most buildable terrain in the development with excellent drainage and level grade throughout. Morning sun exposure and cooling Pacific breezes.",
			Model3DURL:  strPtr(placeholderModel),
			CameraOrbit: strPtr("225deg 60deg 2m"),
			Corners:     models.Corners{orb.Point{-116.5998, 31.4882}, orb.Point{-116.5963, 31.4882}, orb.Point{-116.5963, 31.4855}, orb.Point{-116.5998, 31.4858}},
			ImageURLs:   unsplash("1510414842594-a61c69b5ae57", "1504681869696-d977211a5f4c", "1501785888041-af3ef285b470"),
		},
		{
			ID:          "valle-central",
			Name:        "Valle Central",
			ZoningType:  "Commercial",
			BasePrice:   75000,
			LotSizeSqm:  50,
			Description: "South-central valley floor between the road junction and the seasonal wash. Direct road access on two sides. Zoned for small commercial, ideal for shops, eco-tourism, or community services.",
			Model3DURL:  strPtr(placeholderModel),
			CameraOrbit: strPtr("180deg 65deg 3m"),
			Corners:     models.Corners{orb.Point{-116.6012, 31.4843}, orb.Point{-116.5996, 31.4848}, orb.Point{-116.5972, 31.4824}, orb.Point{-116.6003, 31.4824}},
			ImageURLs:   unsplash("1505142468610-359e7d316be0", "1520483601560-389dff434fdf", "1494783367193-149034c05e8f"),
		},
		{
			ID:          "ribera-este",
			Name:        "Ribera Este",
			ZoningType:  "Residential",
			BasePrice:   72000,
			LotSizeSqm:  55,
			Description: "Eastern bank beyond the seasonal arroyo wash. Open desert terrain with unobstructed southern views. Generous lot sizes and natural separation from the rest of the development create a private, exclusive feel.",
			Model3DURL:  strPtr(placeholderModel),
			CameraOrbit: strPtr("315deg 55deg 3.5m"),
			Corners:     models.Corners{orb.Point{-116.5996, 31.4855}, orb.Point{-116.5963, 31.4855}, orb.Point{-116.5963, 31.4824}, orb.Point{-116.5972, 31.4824}},
			ImageURLs:   unsplash("1476514525535-07fb3b4ae5f1", "1500382017468-9049fed747ef", "1437719417032-8799fd04b926"),
		},
	}
}
