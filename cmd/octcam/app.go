package main

import (
	"encoding/json"
	"fmt"
	"image"
	"io"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/ironsheep/retina-explain-mcp/internal/analysis"
	"github.com/ironsheep/retina-explain-mcp/internal/config"
	"github.com/ironsheep/retina-explain-mcp/internal/imaging"
	"github.com/ironsheep/retina-explain-mcp/internal/logging"
	"github.com/ironsheep/retina-explain-mcp/internal/nn"
)

const (
	flagModel      = "model"
	flagWeights    = "weights"
	flagWeightsDir = "weights-dir"
	flagAlpha      = "alpha"
	flagTarget     = "target"
	flagOut        = "out"
	flagHeatmap    = "heatmap"
	flagHotspot    = "hotspot"
	flagLogLevel   = "log-level"
)

var app = &cli.App{
	Name:            "octcam",
	Usage:           "classify retinal OCT scans and explain the decision with Grad-CAM",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    flagLogLevel,
			Value:   "warn",
			Usage:   "debug, info, warn or error",
			EnvVars: []string{config.EnvLogLevel},
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "explain",
			Usage:     "classify one scan and write the heatmap composite",
			ArgsUsage: "<scan>",
			UsageText: "octcam explain --model efficientnet_b4 --weights w.gob --alpha 0.5 --out o.png scan.png",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    flagModel,
					Value:   string(nn.KindEfficientNetB4),
					Usage:   "model kind, see `octcam models`",
					EnvVars: []string{config.EnvModel},
				},
				&cli.StringFlag{
					Name:  flagWeights,
					Usage: "checkpoint `FILE`; overrides --weights-dir",
				},
				&cli.StringFlag{
					Name:    flagWeightsDir,
					Value:   "models",
					Usage:   "directory holding <model>.gob checkpoints",
					EnvVars: []string{config.EnvWeightsDir},
				},
				&cli.Float64Flag{
					Name:    flagAlpha,
					Value:   analysis.DefaultAlpha,
					Usage:   "heatmap opacity in [0,1]",
					EnvVars: []string{config.EnvAlpha},
				},
				&cli.IntFlag{
					Name:  flagTarget,
					Usage: "class index to explain (default: predicted class)",
				},
				&cli.StringFlag{
					Name:  flagOut,
					Usage: "write the composite PNG to `FILE`",
				},
				&cli.StringFlag{
					Name:  flagHeatmap,
					Usage: "write the bare heatmap PNG to `FILE`",
				},
				&cli.Float64Flag{
					Name:  flagHotspot,
					Usage: "outline the region at or above this fraction of peak attention",
				},
			},
			Action: ExplainAction,
		},
		{
			Name:   "models",
			Usage:  "list the available models",
			Action: ModelsAction,
		},
	},
}

// NewApp returns the CLI with Writer set to out and ErrWriter set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ModelsAction prints the model zoo.
func ModelsAction(c *cli.Context) error {
	return printJSON(c.App.Writer, nn.Specs())
}

type explainOutput struct {
	*analysis.Result
	Hotspot     *imaging.Hotspot `json:"hotspot,omitempty"`
	OutFile     string           `json:"out_file,omitempty"`
	HeatmapFile string           `json:"heatmap_file,omitempty"`
}

// ExplainAction classifies the scan named by the first argument.
func ExplainAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("explain needs exactly one scan path")
	}
	logger, err := logging.New("octcam", c.String(flagLogLevel))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	kind := nn.Kind(c.String(flagModel))
	var model *nn.Model
	if path := c.String(flagWeights); path != "" {
		model, err = nn.LoadFile(kind, path, logger)
	} else {
		model, err = nn.Load(kind, c.String(flagWeightsDir), logger)
	}
	if err != nil {
		return err
	}
	svc, err := analysis.NewService(model, analysis.WithLogger(logger))
	if err != nil {
		return err
	}

	scanPath := c.Args().First()
	img, err := imgio.Open(scanPath)
	if err != nil {
		return errors.Wrapf(err, "open %s", scanPath)
	}

	alpha := c.Float64(flagAlpha)
	req := analysis.Request{Image: img, Alpha: &alpha}
	if c.IsSet(flagTarget) {
		target := c.Int(flagTarget)
		req.Target = &target
	}
	res, err := svc.Analyze(c.Context, req)
	if err != nil {
		return err
	}
	out := explainOutput{Result: res}

	composite := res.Image
	if c.IsSet(flagHotspot) {
		annotated, hs, err := imaging.AnnotateHotspot(composite, res.Map, c.Float64(flagHotspot), "")
		if err != nil {
			return err
		}
		composite = annotated
		out.Hotspot = &hs
	}

	var saveErr error
	if path := c.String(flagOut); path != "" {
		saveErr = multierr.Append(saveErr, savePNG(path, composite))
		out.OutFile = path
	}
	if path := c.String(flagHeatmap); path != "" {
		b := res.Display.Bounds()
		heat, err := imaging.Heatmap(res.Map, b.Dx(), b.Dy())
		saveErr = multierr.Append(saveErr, err)
		if err == nil {
			saveErr = multierr.Append(saveErr, savePNG(path, heat))
		}
		out.HeatmapFile = path
	}
	if saveErr != nil {
		return saveErr
	}
	if out.OutFile != "" {
		// the file already holds the composite
		res.Overlay = nil
	}
	if !res.GradCAMAvailable {
		fmt.Fprintf(c.App.ErrWriter, "warning: %s (%s)\n", res.Warning, res.DegenerateReason)
	}
	return printJSON(c.App.Writer, out)
}

func savePNG(path string, img image.Image) error {
	return errors.Wrapf(imgio.Save(path, img, imgio.PNGEncoder()), "save %s", path)
}
